package kvstore

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// FileStore keeps one file per key under a directory. Set goes through a
// rename so an uncontrolled reset mid-write never leaves a torn record: the
// old value stays intact until the new one is fully on disk.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *FileStore) Set(key string, value []byte) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(s.dir, key), value, 0600)
}
