// Package auth implements the login/logout contract against the backend.
// There is no auth UI here; mealctl and the agent bootstrap are the only
// consumers.
package auth

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/sekolahmbg/mbg-client/api"
	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/core/session"
)

type (
	Credentials struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	loginResponse struct {
		AccessToken   string           `json:"access_token"`
		RefreshToken  string           `json:"refresh_token"`
		Role          string           `json:"role"`
		AccountStatus string           `json:"account_status,omitempty"`
		User          *session.Profile `json:"user,omitempty"`
	}

	Service struct {
		client   *api.Client
		sessions *session.Store
		validate *validator.Validate
	}
)

func NewService(client *api.Client, sessions *session.Store, validate *validator.Validate) *Service {
	return &Service{client: client, sessions: sessions, validate: validate}
}

// Login exchanges credentials for a session and makes it current.
func (svc *Service) Login(ctx context.Context, username, password string) (*session.Session, error) {
	creds := Credentials{Username: core.CleanString(username, true), Password: password}
	if err := svc.validate.Struct(creds); err != nil {
		return nil, err
	}

	var resp loginResponse
	err := svc.client.DoInto(ctx, "/auth/login", &api.Options{
		Method: http.MethodPost,
		Body:   creds,
		NoAuth: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errors.New("login response missing access token")
	}

	role := core.Role(resp.Role)
	if role == core.RoleUnknown {
		role = session.RoleFromToken(resp.AccessToken)
	}
	sess := &session.Session{
		Username:      creds.Username,
		Role:          role,
		AccessToken:   resp.AccessToken,
		RefreshToken:  resp.RefreshToken,
		AccountStatus: resp.AccountStatus,
		Profile:       resp.User,
	}
	svc.sessions.Set(sess)
	return sess, nil
}

// Logout clears the session. The server-side revocation is best-effort; a
// dead server must not keep a device logged in.
func (svc *Service) Logout(ctx context.Context) {
	if svc.sessions.Get() != nil {
		_, _ = svc.client.Do(ctx, "/auth/logout", &api.Options{Method: http.MethodPost})
	}
	svc.sessions.Clear()
}
