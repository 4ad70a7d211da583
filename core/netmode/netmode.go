package netmode

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/storage/kv"
)

// Mode selects which backend host the API client targets.
type Mode string

const (
	ModeCloud Mode = "CLOUD"
	ModeLocal Mode = "LOCAL"
)

// ErrLocalModeNotAllowed is returned when a role outside the LOCAL-eligible
// set tries to toggle to LOCAL. The persisted mode is left untouched.
var ErrLocalModeNotAllowed = errors.New("this role may not use a local school server")

// Resolver decides, per request, whether to target the cloud backend or a
// locally-discovered school server. Preference and local host live in the
// key-value store; role eligibility is enforced both at read and toggle time.
type Resolver struct {
	store kv.Store
	conf  *core.Config
}

func NewResolver(store kv.Store, conf *core.Config) *Resolver {
	return &Resolver{store: store, conf: conf}
}

// Mode returns the stored preference; anything unrecognized reads as CLOUD.
func (r *Resolver) Mode() Mode {
	raw, ok := r.store.Get(kv.NetworkModeKey)
	if !ok {
		return ModeCloud
	}
	if Mode(raw) == ModeLocal {
		return ModeLocal
	}
	return ModeCloud
}

// SetMode persists the preference. Toggling to LOCAL is rejected for roles
// outside the eligible set and the stored value stays as it was.
func (r *Resolver) SetMode(m Mode, role core.Role) error {
	if m != ModeCloud && m != ModeLocal {
		return errors.Errorf("unknown network mode %q", m)
	}
	if m == ModeLocal && !role.HasCapability(core.CapUseLocalServer) {
		return ErrLocalModeNotAllowed
	}
	r.store.Set(kv.NetworkModeKey, string(m))
	return nil
}

func (r *Resolver) LocalHost() string {
	host, _ := r.store.Get(kv.LocalHostKey)
	return host
}

func (r *Resolver) SetLocalHost(host string) {
	r.store.Set(kv.LocalHostKey, core.CleanString(host))
}

// CloudBaseURL returns the stored override or the built-in production URL,
// normalized to end in the API path suffix.
func (r *Resolver) CloudBaseURL() string {
	if u, ok := r.store.Get(kv.BaseURLKey); ok && core.CleanString(u) != "" {
		return NormalizeBaseURL(u)
	}
	return NormalizeBaseURL(r.conf.CloudBaseURL)
}

// SetCloudBaseURL persists a base URL override, normalized.
func (r *Resolver) SetCloudBaseURL(u string) {
	r.store.Set(kv.BaseURLKey, NormalizeBaseURL(u))
}

// DetermineBaseURL resolves the effective base URL for a request.
//
// Order: explicit override wins; roles outside the LOCAL-eligible set always
// get the cloud URL regardless of stored mode; otherwise LOCAL mode with a
// usable local host yields the local URL; anything else falls back to cloud.
// An unknown role (no session yet) is allowed to use LOCAL.
func (r *Resolver) DetermineBaseURL(override string, role core.Role) string {
	if override != "" {
		return override
	}
	cloud := r.CloudBaseURL()
	if !role.HasCapability(core.CapUseLocalServer) {
		return cloud
	}
	if r.Mode() != ModeLocal {
		return cloud
	}
	if local := BuildLocalBaseURL(r.LocalHost()); local != "" {
		return local
	}
	return cloud
}

// BuildLocalBaseURL turns a stored host/IP into a usable base URL: http://
// is prepended when no scheme is present, the default port is appended when
// a bare host carries neither port nor path, and the API suffix is ensured
// exactly once. An unusable host yields "".
func BuildLocalBaseURL(host string) string {
	host = core.CleanString(host)
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() == "" && u.Path == "" {
		u.Host = fmt.Sprintf("%s:%d", u.Host, core.DefaultLocalPort)
	}
	return NormalizeBaseURL(u.String())
}

// NormalizeBaseURL strips trailing slashes and ensures the URL ends with the
// API path suffix, without ever duplicating it.
func NormalizeBaseURL(u string) string {
	u = strings.TrimRight(core.CleanString(u), "/")
	if strings.HasSuffix(u, core.APIPathSuffix) {
		return u
	}
	return u + core.APIPathSuffix
}
