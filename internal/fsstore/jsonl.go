package fsstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const maxJSONLLineBytes = 4 * 1024 * 1024

// JSONLWriter appends one JSON value per line. Writes are flushed before
// returning so concurrent readers always see whole lines.
type JSONLWriter struct {
	path string
	opts JSONLOptions

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	closed bool
}

func NewJSONLWriter(path string, opts JSONLOptions) (*JSONLWriter, error) {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	opts = normalizeJSONLOptions(opts)
	if err := EnsureDir(filepath.Dir(normalizedPath), opts.DirPerm); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(normalizedPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, opts.FilePerm)
	if err != nil {
		return nil, fmt.Errorf("open jsonl %s: %w", normalizedPath, err)
	}
	return &JSONLWriter{
		path:   normalizedPath,
		opts:   opts,
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
	}, nil
}

func (w *JSONLWriter) Path() string {
	return w.path
}

func (w *JSONLWriter) AppendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: jsonl encode %s: %v", ErrEncodeFailed, w.path, err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("%w: %s", ErrClosed, w.path)
	}
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if w.opts.SyncEachWrite {
		return w.file.Sync()
	}
	return nil
}

func (w *JSONLWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.writer.Flush()
	err := w.file.Close()
	w.file = nil
	w.writer = nil
	return err
}

// ReadJSONL decodes every non-blank line of path in file order. A missing
// file yields no items.
func ReadJSONL[T any](path string) ([]T, error) {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(normalizedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open jsonl %s: %w", normalizedPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLLineBytes)
	var out []T
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrDecodeFailed, normalizedPath, line, err)
		}
		out = append(out, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl %s: %w", normalizedPath, err)
	}
	return out, nil
}
