package kv

import "encoding/json"

// Well-known storage keys. Physical representation depends on the Store impl.
const (
	QueueKey       = "offline_queue"
	NetworkModeKey = "network_mode"
	LocalHostKey   = "local_server_host"
	BaseURLKey     = "server_base_url"
	EdgeAPIKeyName = "edge_api_key"
	DarkModeKey    = "dark_mode"
)

type (
	// Store is a durable string key-value store. Reads that fail for any
	// reason report absence instead of erroring; writes log and swallow
	// failures. Correctness-critical callers must not rely on a failed Set
	// being observable.
	Store interface {
		Get(key string) (string, bool)
		Set(key, value string)
		Remove(key string)
	}

	// SecretStore holds string secrets (API keys). Implementations prefer an
	// encrypted-at-rest facility and fall back to a plain Store when none is
	// available on the current machine.
	SecretStore interface {
		GetItem(key string) (string, bool)
		SetItem(key, value string)
		RemoveItem(key string)
	}
)

// GetJSON reads key and unmarshals it into v. A missing key or malformed
// value degrades to false; it never errors.
func GetJSON(s Store, key string, v interface{}) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false
	}
	return true
}

// SetJSON marshals v and stores it under key. Values used here are always
// marshalable structs, so a marshal failure is a programmer error and is
// dropped.
func SetJSON(s Store, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Set(key, string(raw))
}
