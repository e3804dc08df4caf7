// Package pkg holds generic helpers shared by mutflow packages.
package pkg

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrSpillClosed is returned when appending to a closed spill.
var ErrSpillClosed = errors.New("spill is closed")

// Spill is an append-only sequence of T kept in a gob-encoded temporary file, so
// long runs do not hold every item in memory. It is safe for concurrent use.
type Spill[T any] struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	writer  *bufio.Writer
	encoder *gob.Encoder
	count   int
}

// NewSpill creates a spill file in dir. An empty dir uses the system temp directory.
func NewSpill[T any](dir string) (*Spill[T], error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "mutflow-spill")
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create spill dir: %w", err)
	}

	file, err := os.CreateTemp(dir, "spill-*.gob")
	if err != nil {
		return nil, fmt.Errorf("create spill file: %w", err)
	}

	writer := bufio.NewWriter(file)

	slog.Debug("Created spill", "path", file.Name())

	return &Spill[T]{
		path:    file.Name(),
		file:    file,
		writer:  writer,
		encoder: gob.NewEncoder(writer),
	}, nil
}

// Path returns the backing file.
func (s *Spill[T]) Path() string {
	return s.path
}

// Len returns the number of items appended so far.
func (s *Spill[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.count
}

// Append encodes items at the end of the spill.
func (s *Spill[T]) Append(items ...T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrSpillClosed
	}

	for _, item := range items {
		if err := s.encoder.Encode(item); err != nil {
			return fmt.Errorf("encode spill item %d: %w", s.count, err)
		}

		s.count++
	}

	return s.writer.Flush()
}

// Each decodes every item in append order. Items appended while Each runs are
// not visited.
func (s *Spill[T]) Each(fn func(item T) error) error {
	s.mu.Lock()
	count := s.count
	s.mu.Unlock()

	// #nosec G304 - the path was created by NewSpill
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open spill: %w", err)
	}

	defer func() { _ = file.Close() }()

	decoder := gob.NewDecoder(bufio.NewReader(file))

	for i := 0; i < count; i++ {
		var item T
		if err := decoder.Decode(&item); err != nil {
			return fmt.Errorf("decode spill item %d: %w", i, err)
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

// Close flushes and closes the backing file. The items stay readable with Each.
func (s *Spill[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	s.file = nil

	return errors.Join(flushErr, closeErr)
}

// Remove closes the spill and deletes its backing file.
func (s *Spill[T]) Remove() error {
	closeErr := s.Close()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Join(closeErr, fmt.Errorf("remove spill: %w", err))
	}

	return closeErr
}
