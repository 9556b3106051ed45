package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is the attachment storage boundary. Stored names are opaque,
// server-generated tokens; callers never pass user-controlled paths.
type Store interface {
	Put(name string, r io.Reader) error
	Open(name string) (io.ReadCloser, error)
}

type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Put(name string, r io.Reader) error {
	if !validName(name) {
		return fmt.Errorf("invalid stored name %q", name)
	}
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("write attachment: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write attachment: %w", err)
	}
	return nil
}

func (s *DiskStore) Open(name string) (io.ReadCloser, error) {
	if !validName(name) {
		return nil, fmt.Errorf("invalid stored name %q", name)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && name != "." && name != ".."
}
