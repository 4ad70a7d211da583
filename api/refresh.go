package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/pkg/errors"

	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/core/session"
)

// refreshResponse is the wire shape of POST /auth/refresh.
type refreshResponse struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	Role          string `json:"role,omitempty"`
	AccountStatus string `json:"account_status,omitempty"`
}

// refreshSession exchanges the refresh token for a new session. Concurrent
// 401s share one in-flight exchange: racing independent refreshes would
// invalidate each other's refresh tokens, so only one network call is ever
// out at a time, process-wide.
func (c *Client) refreshSession(ctx context.Context, baseURL string) (*session.Session, error) {
	v, err, _ := c.refreshGroup.Do("token-refresh", func() (interface{}, error) {
		return c.doRefresh(ctx, baseURL)
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

func (c *Client) doRefresh(ctx context.Context, baseURL string) (*session.Session, error) {
	old := c.sessions.Get()
	if old == nil || old.RefreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": old.RefreshToken})
	if err != nil {
		return nil, errors.Wrap(err, "encoding refresh request")
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, joinURL(baseURL, "/auth/refresh"), bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building refresh request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "refresh call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("refresh rejected (%d)", resp.StatusCode)
	}

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading refresh response")
	}
	var rr refreshResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, errors.Wrap(err, "decoding refresh response")
	}
	if rr.AccessToken == "" {
		return nil, errors.New("refresh response missing access token")
	}

	// replace the session wholesale; role falls back to the token claims,
	// then to the previous session
	role := core.Role(rr.Role)
	if role == core.RoleUnknown {
		role = session.RoleFromToken(rr.AccessToken)
	}
	if role == core.RoleUnknown {
		role = old.Role
	}
	status := rr.AccountStatus
	if status == "" {
		status = old.AccountStatus
	}
	fresh := &session.Session{
		Username:      old.Username,
		Role:          role,
		AccessToken:   rr.AccessToken,
		RefreshToken:  rr.RefreshToken,
		AccountStatus: status,
		Profile:       old.Profile,
	}
	c.sessions.Set(fresh)
	return fresh, nil
}
