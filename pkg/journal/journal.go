// Package journal provides an append-only log of gob-encoded values on disk.
package journal

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrReadOnly is returned by Append on a journal opened with Open.
var ErrReadOnly = errors.New("journal is read-only")

// Journal is an ordered, append-only sequence of values of type T.
type Journal[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	Range(fn func(index uint64, item T) error) error
	Close() error
}

type fileJournal[T any] struct {
	path     string
	file     *os.File
	encoder  *gob.Encoder
	mu       sync.Mutex
	length   uint64
	readOnly bool
}

// Create truncates or creates the journal file at path, creating parent
// directories as needed.
func Create[T any](path string) (Journal[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create journal", "path", path, "error", err)
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	slog.Debug("created journal", "path", path)

	return &fileJournal[T]{
		path:    path,
		file:    file,
		encoder: gob.NewEncoder(file),
	}, nil
}

// Open reads an existing journal. The returned journal only supports Range.
func Open[T any](path string) (Journal[T], error) {
	j := &fileJournal[T]{path: path, readOnly: true}

	length, err := j.count()
	if err != nil {
		return nil, err
	}

	j.length = length
	slog.Debug("opened journal", "path", path, "length", length)

	return j, nil
}

// Append implements Journal.
func (j *fileJournal[T]) Append(item T) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.readOnly {
		return ErrReadOnly
	}

	if err := j.encoder.Encode(item); err != nil {
		slog.Error("failed to encode journal entry", "path", j.path, "index", j.length, "error", err)
		return fmt.Errorf("failed to encode journal entry %d: %w", j.length, err)
	}

	j.length++

	return nil
}

// Path implements Journal.
func (j *fileJournal[T]) Path() string {
	return j.path
}

// Len implements Journal.
func (j *fileJournal[T]) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.length
}

// Range calls fn for every entry in append order and stops at the first error.
func (j *fileJournal[T]) Range(fn func(index uint64, item T) error) error {
	j.mu.Lock()
	length := j.length
	j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close journal", "path", j.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	for i := range length {
		var item T
		if err := decoder.Decode(&item); err != nil {
			return fmt.Errorf("failed to decode journal entry %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

// Close implements Journal.
func (j *fileJournal[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	err := j.file.Close()
	j.file = nil

	if err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}

	slog.Debug("closed journal", "path", j.path, "length", j.length)

	return nil
}

// count decodes the whole file to find the number of complete entries. A
// truncated trailing entry, left by a killed writer, is ignored.
func (j *fileJournal[T]) count() (uint64, error) {
	file, err := os.Open(j.path)
	if err != nil {
		return 0, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)

	var length uint64

	for {
		var item T

		err := decoder.Decode(&item)
		if errors.Is(err, io.EOF) {
			return length, nil
		}

		if errors.Is(err, io.ErrUnexpectedEOF) {
			slog.Warn("ignoring truncated journal entry", "path", j.path, "index", length)
			return length, nil
		}

		if err != nil {
			return 0, fmt.Errorf("failed to decode journal entry %d: %w", length, err)
		}

		length++
	}
}
