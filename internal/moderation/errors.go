package moderation

import "errors"

var (
	// ErrInput indicates missing or invalid content supplied by the caller.
	ErrInput = errors.New("invalid moderation input")
	// ErrBackendUnavailable indicates a transport failure, timeout or open circuit on an analysis backend.
	ErrBackendUnavailable = errors.New("analysis backend unavailable")
	// ErrBackendFormat indicates an analysis backend returned a response that could not be decoded.
	ErrBackendFormat = errors.New("unexpected analysis backend response")
	// ErrDecode indicates the video stream could not be parsed into frames.
	ErrDecode = errors.New("failed to decode video stream")
	// ErrIO indicates the invocation-scoped storage could not be created or read.
	ErrIO = errors.New("scoped storage failure")
)
