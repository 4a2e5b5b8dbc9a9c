package fsstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ReadJSON decodes path into out. A missing or blank file reports false
// without error.
func ReadJSON(path string, out any) (bool, error) {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(normalizedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read json %s: %w", normalizedPath, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrDecodeFailed, normalizedPath, err)
	}
	return true, nil
}

func WriteJSONAtomic(path string, v any, opts FileOptions) error {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrEncodeFailed, normalizedPath, err)
	}
	data = append(data, '\n')
	return writeAtomic(normalizedPath, data, opts)
}

// MutateJSON runs a read-modify-write cycle on a JSON document while holding
// the file lock at lockPath. fn sees the zero value when the document does not
// exist yet. Returning an error from fn leaves the document untouched.
func MutateJSON[T any](ctx context.Context, path string, lockPath string, opts FileOptions, fn func(doc *T) error) error {
	if fn == nil {
		return fmt.Errorf("mutate json: nil mutator")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return WithLock(ctx, lockPath, func() error {
		var doc T
		if _, err := ReadJSON(path, &doc); err != nil {
			return err
		}
		if err := fn(&doc); err != nil {
			return err
		}
		return WriteJSONAtomic(path, doc, opts)
	})
}
