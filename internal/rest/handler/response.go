package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bytedance/sonic"
	restTypes "github.com/robalyx/guardian/internal/rest/types"
)

// maxJSONBodySize bounds JSON request bodies.
const maxJSONBodySize = 1 << 20

var (
	errMissingFile = errors.New("missing file")
	errTooLarge    = errors.New("upload too large")
	errBadBody     = errors.New("malformed request body")
)

// jsonAPI decodes request bodies with 64-bit integers preserved.
var jsonAPI = sonic.Config{UseInt64: true}.Froze()

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

// writeError sends an error body with the given status.
func writeError(w http.ResponseWriter, status int, message string) error {
	return writeJSON(w, status, restTypes.ErrorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := jsonAPI.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}

// upload is a single file read from a multipart request.
type upload struct {
	data        []byte
	filename    string
	contentType string
}

// readUpload streams the multipart body and returns the first part named
// field. Parts larger than maxSize yield errTooLarge.
func readUpload(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (*upload, error) {
	// Leave room for multipart framing and other form fields
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+maxJSONBodySize)

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errMissingFile
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errMissingFile
		}
		if err != nil {
			return nil, classifyReadError(err)
		}

		if part.FormName() != field {
			part.Close()
			continue
		}

		return readPart(part, maxSize)
	}
}

func readPart(part *multipart.Part, maxSize int64) (*upload, error) {
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, maxSize+1))
	if err != nil {
		return nil, classifyReadError(err)
	}
	if int64(len(data)) > maxSize {
		return nil, errTooLarge
	}
	if len(data) == 0 {
		return nil, errMissingFile
	}

	return &upload{
		data:        data,
		filename:    part.FileName(),
		contentType: part.Header.Get("Content-Type"),
	}, nil
}

func classifyReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errTooLarge
	}
	return fmt.Errorf("%w: %w", errBadBody, err)
}
