// Package netcheck probes reachability of whichever backend the client is
// currently targeting.
package netcheck

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/sekolahmbg/mbg-client/core/netmode"
	"github.com/sekolahmbg/mbg-client/core/offline"
	"github.com/sekolahmbg/mbg-client/core/session"
)

const defaultProbeTimeout = 3 * time.Second

// Checker dials the effective backend host to answer the connectivity
// question. A TCP connect is cheap and good enough as a first signal; the
// submit path still treats call failures as the real answer.
type Checker struct {
	resolver *netmode.Resolver
	sessions *session.Store
	timeout  time.Duration
}

var _ offline.Connectivity = (*Checker)(nil)

func NewChecker(resolver *netmode.Resolver, sessions *session.Store, timeout ...time.Duration) *Checker {
	t := defaultProbeTimeout
	if len(timeout) > 0 && timeout[0] > 0 {
		t = timeout[0]
	}
	return &Checker{resolver: resolver, sessions: sessions, timeout: t}
}

func (c *Checker) Online(ctx context.Context) bool {
	base := c.resolver.DetermineBaseURL("", c.sessions.Get().RoleOrUnknown())
	addr := dialAddr(base)
	if addr == "" {
		return false
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func dialAddr(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}

// Static is a fixed-answer Connectivity for tests and forced-offline mode.
type Static bool

var _ offline.Connectivity = Static(false)

func (s Static) Online(context.Context) bool { return bool(s) }
