package lead

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileStore persists leads as append-only JSON lines in a local file.
// The default backend when no database is configured; suitable for a
// single-owner freelance site. Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that writes to the given path.
// The file is created if it does not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Record appends the lead to the file, assigning an ID if it has none.
func (fs *FileStore) Record(_ context.Context, l Lead) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if l.ID == "" {
		l.ID = NewID()
	}

	data, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("lead: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("lead: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("lead: write: %w", err)
	}
	return l.ID, nil
}

// List reads back every stored lead in insertion order. Used by the owner's
// review tooling; a missing file yields an empty list.
func (fs *FileStore) List(_ context.Context) ([]Lead, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lead: open file: %w", err)
	}
	defer f.Close()

	var leads []Lead
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var l Lead
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return nil, fmt.Errorf("lead: decode line: %w", err)
		}
		leads = append(leads, l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("lead: scan file: %w", err)
	}
	return leads, nil
}
