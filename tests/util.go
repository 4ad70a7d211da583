package testutil

import (
	"testing"
	"time"

	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/core/session"
	"github.com/sekolahmbg/mbg-client/storage/kv"
)

// NewSessionStore returns a mem-backed session store plus its kv store.
func NewSessionStore(t *testing.T) (*session.Store, *kv.MemStore) {
	t.Helper()
	store := kv.NewMemStore()
	return session.NewStore(store, "test_session", nil), store
}

// Login puts a session with the given role into the store.
func Login(t *testing.T, sessions *session.Store, role core.Role) *session.Session {
	t.Helper()
	sess := &session.Session{
		Username:     "guru.budi",
		Role:         role,
		AccessToken:  "access-" + string(role),
		RefreshToken: "refresh-" + string(role),
	}
	sessions.Set(sess)
	return sess
}

// TestConfig is a config with fast timeouts for tests.
func TestConfig() *core.Config {
	return &core.Config{
		Env:          "TEST",
		Debug:        true,
		AppName:      "MBG Client",
		Build:        "test",
		SessionKey:   "test_session",
		CloudBaseURL: core.DefaultCloudBaseURL,
		HTTPTimeout:  2 * time.Second,
	}
}
