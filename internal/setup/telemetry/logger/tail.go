// Package logger provides the file sinks used by the service loggers.
package logger

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrClosed = errors.New("log file is closed")

// TailFile appends log output to a file and keeps only its newest lines.
// The file may grow to twice the line cap before it is compacted back down,
// and Sync or Close always leave at most the cap on disk.
type TailFile struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	lines   *lineRing
	partial []byte // trailing bytes of a line not yet terminated
	onDisk  int    // complete lines currently in the file
}

// OpenTailFile opens or creates the log file at path.
func OpenTailFile(path string, maxLines int) (*TailFile, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	return &TailFile{
		path:  path,
		file:  file,
		lines: newLineRing(maxLines),
	}, nil
}

// Write appends p and compacts the file once it holds twice the line cap.
func (t *TailFile) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return 0, ErrClosed
	}

	n, err := t.file.Write(p)
	if err != nil {
		return n, err
	}

	t.track(p)

	if t.onDisk >= 2*t.lines.capacity() {
		if err := t.compact(); err != nil {
			return n, fmt.Errorf("failed to compact log file: %w", err)
		}
	}

	return n, nil
}

// Sync trims the file to the line cap and flushes it to disk.
func (t *TailFile) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return ErrClosed
	}

	if t.onDisk > t.lines.capacity() {
		if err := t.compact(); err != nil {
			return fmt.Errorf("failed to compact log file: %w", err)
		}
	}

	return t.file.Sync()
}

// Close syncs and closes the file. Later writes return ErrClosed.
func (t *TailFile) Close() error {
	if err := t.Sync(); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

// track feeds complete lines from p into the ring.
func (t *TailFile) track(p []byte) {
	data := p
	if len(t.partial) > 0 {
		data = append(t.partial, p...)
		t.partial = nil
	}

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		if i > 0 {
			t.lines.add(string(data[:i]))
			t.onDisk++
		}
		data = data[i+1:]
	}

	if len(data) > 0 {
		t.partial = bytes.Clone(data)
	}
}

// compact replaces the file with the kept lines through a temp file in the same directory.
func (t *TailFile) compact() error {
	var buf bytes.Buffer
	for _, line := range t.lines.snapshot() {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.Write(t.partial)

	temp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".tmp-")
	if err != nil {
		return err
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return err
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return err
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	// The old handle must be closed before the rename on Windows
	t.file.Close()

	if err := os.Rename(tempPath, t.path); err != nil {
		os.Remove(tempPath)
		t.file = nil
		return err
	}

	file, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.file = nil
		return err
	}

	t.file = file
	t.onDisk = t.lines.size
	return nil
}
