package sim

import (
	"fmt"
	"os"
)

// FileWriter writes feed records to a JSONL file that ReplayLogFile can
// read back.
type FileWriter struct {
	*JSONStdoutWriter
	file *os.File
}

// NewFileWriter creates (or truncates) path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create feed log: %w", err)
	}
	return &FileWriter{JSONStdoutWriter: newJSONWriter(f), file: f}, nil
}

// Close closes the underlying file.
func (f *FileWriter) Close() error {
	if f.file == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}
