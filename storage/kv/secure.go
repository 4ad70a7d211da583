package kv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/sekolahmbg/mbg-client/core"
)

const masterKeyEnv = "MBG_MASTER_KEY_HEX"

// secretStore encrypts values at rest when a machine master key is
// available, and falls back transparently to the plain store otherwise.
// Availability is probed once at construction and cached.
type secretStore struct {
	store  Store
	logger core.Logger

	// nil when the secure facility is unavailable
	aead cipher.AEAD
}

var _ SecretStore = (*secretStore)(nil)

// NewSecretStore probes for the master key (env MBG_MASTER_KEY_HEX, then
// <dataDir>/master.key) and returns a SecretStore backed by store.
func NewSecretStore(store Store, dataDir string, logger core.Logger) SecretStore {
	logger = core.OrNopLogger(logger)
	s := &secretStore{store: store, logger: logger}

	master, err := readMasterKey(dataDir)
	if err != nil {
		logger.Info("secret store: no master key, falling back to plain storage")
		return s
	}
	aead, err := newAEAD(master)
	if err != nil {
		logger.Error("secret store: AEAD setup failed, falling back to plain storage",
			map[string]interface{}{"err": err.Error()})
		return s
	}
	s.aead = aead
	return s
}

func (s *secretStore) GetItem(key string) (string, bool) {
	raw, ok := s.store.Get(key)
	if !ok {
		return "", false
	}
	if s.aead == nil {
		return raw, true
	}
	plain, err := s.open(raw)
	if err != nil {
		s.logger.Warn("secret store: decrypt failed", map[string]interface{}{"key": key})
		return "", false
	}
	return plain, true
}

func (s *secretStore) SetItem(key, value string) {
	if s.aead == nil {
		s.store.Set(key, value)
		return
	}
	sealed, err := s.seal(value)
	if err != nil {
		s.logger.Error("secret store: encrypt failed", map[string]interface{}{"key": key})
		return
	}
	s.store.Set(key, sealed)
}

func (s *secretStore) RemoveItem(key string) {
	s.store.Remove(key)
}

func (s *secretStore) seal(plain string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *secretStore) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("ciphertext too short")
	}
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func newAEAD(master []byte) (cipher.AEAD, error) {
	// derive the storage key; the raw master key is never used directly
	hk := hkdf.New(sha256.New, master, nil, []byte("mbg-secret-store"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func readMasterKey(dataDir string) ([]byte, error) {
	h := os.Getenv(masterKeyEnv)
	if h == "" {
		raw, err := ioutil.ReadFile(filepath.Join(dataDir, "master.key"))
		if err != nil {
			return nil, errors.Wrap(err, "no master key configured")
		}
		h = string(raw)
	}
	b, err := hex.DecodeString(strings.TrimSpace(h))
	if err != nil {
		return nil, errors.Wrap(err, "master key hex decode")
	}
	if len(b) != 32 {
		return nil, errors.New("master key must be 32 bytes (64 hex chars)")
	}
	return b, nil
}
