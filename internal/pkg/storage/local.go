package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalCollection stores a collection as one JSON array file on the local file system.
// Writes replace the whole file through a temp file and an atomic rename, so readers
// always see either the old or the new array. Serialization is per process: a data
// directory must not be shared by two running servers.
type LocalCollection[T any] struct {
	name string
	path string
	gate gate
}

// NewLocalCollection creates a collection backed by <basePath>/<name>.json.
func NewLocalCollection[T any](basePath, name string) (*LocalCollection[T], error) {
	// Ensure base path exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalCollection[T]{
		name: name,
		path: filepath.Join(basePath, name+".json"),
		gate: newGate(),
	}, nil
}

func (l *LocalCollection[T]) Name() string {
	return l.name
}

// Path returns the backing file path.
func (l *LocalCollection[T]) Path() string {
	return l.path
}

func (l *LocalCollection[T]) Load(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.read()
}

func (l *LocalCollection[T]) Update(ctx context.Context, fn func(records []T) ([]T, error)) error {
	if err := l.gate.enter(ctx); err != nil {
		return err
	}
	defer l.gate.leave()

	current, err := l.read()
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	return l.write(next)
}

func (l *LocalCollection[T]) read() ([]T, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ErrUnavailable.WithCause(fmt.Errorf("failed to read %s: %w", l.path, err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, ErrUnavailable.WithCause(fmt.Errorf("failed to decode %s: %w", l.path, err))
	}
	return records, nil
}

func (l *LocalCollection[T]) write(records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return ErrWriteFailed.WithCause(fmt.Errorf("failed to encode %s: %w", l.name, err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), l.name+".*.tmp")
	if err != nil {
		return ErrWriteFailed.WithCause(fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		_ = os.Remove(tmpPath)
		return ErrWriteFailed.WithCause(err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return ErrWriteFailed.WithCause(fmt.Errorf("failed to replace %s: %w", l.path, err))
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file content: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return f.Close()
}
