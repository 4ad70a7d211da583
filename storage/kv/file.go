package kv

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sekolahmbg/mbg-client/core"
)

var unsafeKeyChars = regexp.MustCompile(`[^\w.-]`)

// FileStore keeps one file per key under a data directory. It is the durable
// platform storage of this client; a single logical device owns the
// directory, multi-process access is not supported.
type FileStore struct {
	dir    string
	logger core.Logger
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string, logger core.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, logger: core.OrNopLogger(logger)}, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	raw, err := ioutil.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("kv: read failed", map[string]interface{}{"key": key, "err": err.Error()})
		}
		return "", false
	}
	return string(raw), true
}

func (s *FileStore) Set(key, value string) {
	if err := ioutil.WriteFile(s.path(key), []byte(value), 0600); err != nil {
		s.logger.Error("kv: write failed", map[string]interface{}{"key": key, "err": err.Error()})
	}
}

func (s *FileStore) Remove(key string) {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("kv: remove failed", map[string]interface{}{"key": key, "err": err.Error()})
	}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}
