package export

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/crypto/argon2"
)

// HashType represents the different hashing algorithms available.
type HashType string

const (
	// HashTypeNone writes user IDs in clear text.
	HashTypeNone HashType = "none"
	// HashTypeArgon2id uses the Argon2id algorithm for hashing.
	HashTypeArgon2id HashType = "argon2id"
	// HashTypeSHA256 uses the SHA256 algorithm for hashing.
	HashTypeSHA256 HashType = "sha256"
)

// Valid reports whether the hash type is supported.
func (h HashType) Valid() bool {
	switch h {
	case HashTypeNone, HashTypeArgon2id, HashTypeSHA256:
		return true
	}
	return false
}

// HashID converts a single ID to a hash using the specified algorithm with the provided salt.
func HashID(id int64, salt string, hashType HashType, iterations uint32, memory uint32) string {
	// IDs are hashed as little-endian bytes
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, uint64(id)) //nolint:gosec // ids are positive

	var hash []byte

	switch hashType {
	case HashTypeArgon2id:
		hash = argon2.IDKey(idBytes, []byte(salt), iterations, memory*1024, 1, 32)
	case HashTypeSHA256:
		// Each round hashes the ID with the previous digest, seeded by the salt
		hash = []byte(salt)

		h := sha256.New()
		for range iterations {
			h.Reset()
			h.Write(idBytes)
			h.Write(hash)
			hash = h.Sum(nil)
		}
	default:
		return strconv.FormatInt(id, 10)
	}

	return hex.EncodeToString(hash)
}

// Hasher pseudonymizes user IDs and remembers every ID it has seen,
// so repeated users across batches are hashed once.
type Hasher struct {
	salt        string
	hashType    HashType
	iterations  uint32
	memory      uint32
	concurrency int

	mu    sync.RWMutex
	known map[int64]string
}

// NewHasher creates a Hasher from the export config.
func NewHasher(config *Config) *Hasher {
	return &Hasher{
		salt:        config.Salt,
		hashType:    HashType(config.HashType),
		iterations:  max(config.Iterations, 1),
		memory:      max(config.Memory, 1),
		concurrency: max(config.Concurrency, 1),
		known:       make(map[int64]string),
	}
}

// HashAll returns the hash of every ID, computing unseen ones concurrently.
func (h *Hasher) HashAll(ids []int64) map[int64]string {
	result := make(map[int64]string, len(ids))

	// Split into cached and pending IDs
	var pending []int64
	h.mu.RLock()
	for _, id := range ids {
		if _, done := result[id]; done {
			continue
		}
		if hash, ok := h.known[id]; ok {
			result[id] = hash
			continue
		}
		result[id] = ""
		pending = append(pending, id)
	}
	h.mu.RUnlock()

	if len(pending) == 0 {
		return result
	}

	// Hash pending IDs on a bounded pool
	hashes := make([]string, len(pending))
	p := pool.New().WithMaxGoroutines(min(h.concurrency, len(pending)))
	for i, id := range pending {
		p.Go(func() {
			hashes[i] = HashID(id, h.salt, h.hashType, h.iterations, h.memory)
		})
	}
	p.Wait()

	h.mu.Lock()
	for i, id := range pending {
		h.known[id] = hashes[i]
		result[id] = hashes[i]
	}
	h.mu.Unlock()

	return result
}

// Count returns the number of distinct IDs hashed so far.
func (h *Hasher) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.known)
}
