package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/core/netmode"
	"github.com/sekolahmbg/mbg-client/core/session"
	"github.com/sekolahmbg/mbg-client/storage/kv"
)

type fixture struct {
	client   *Client
	sessions *session.Store
	store    *kv.MemStore
	secrets  kv.SecretStore
}

func setup(t *testing.T, handler http.Handler) (*fixture, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := kv.NewMemStore()
	sessions := session.NewStore(store, "test_session", nil)
	sessions.Set(&session.Session{
		Username:     "guru.budi",
		Role:         core.RoleAdminSekolah,
		AccessToken:  "old-token",
		RefreshToken: "refresh-token",
	})

	conf := &core.Config{CloudBaseURL: srv.URL, HTTPTimeout: 2 * time.Second}
	resolver := netmode.NewResolver(store, conf)
	secrets := kv.NewSecretStore(store, t.TempDir(), nil)

	fx := &fixture{
		client:   NewClient(conf, sessions, resolver, secrets, nil),
		sessions: sessions,
		store:    store,
		secrets:  secrets,
	}
	return fx, srv
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func refreshHandler(calls *int32, delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new-token","refresh_token":"new-refresh","role":"admin_sekolah"}`)
	}
}

func Test_Do_parsesResponses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	})
	mux.HandleFunc("/api/v1/text", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "plain text here")
	})
	mux.HandleFunc("/api/v1/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	fx, _ := setup(t, mux)

	ctx := context.Background()

	v, err := fx.client.Do(ctx, "/json", nil)
	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, v)

	v, err = fx.client.Do(ctx, "text", nil) // no leading slash on purpose
	assert.NoError(t, err)
	assert.Equal(t, "plain text here", v)

	v, err = fx.client.Do(ctx, "/empty", nil)
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func Test_Do_requestShape(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/attendance", func(w http.ResponseWriter, r *http.Request) {
		got = r
		gotBody, _ = ioutil.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	})
	fx, _ := setup(t, mux)
	fx.secrets.SetItem(kv.EdgeAPIKeyName, "edge-key-123")

	_, err := fx.client.Do(context.Background(), "/attendance", &Options{
		Method: http.MethodPost,
		Body:   map[string]string{"school_id": "sch-1"},
	})
	assert.NoError(t, err)

	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "old-token", bearer(got))
	assert.Equal(t, "edge-key-123", got.Header.Get(EdgeTokenHeader))
	assert.JSONEq(t, `{"school_id":"sch-1"}`, string(gotBody))
}

func Test_Do_noAuth(t *testing.T) {
	var auth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/public", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})
	fx, _ := setup(t, mux)

	_, err := fx.client.Do(context.Background(), "/public", &Options{NoAuth: true})
	assert.NoError(t, err)
	assert.Empty(t, auth)
}

func Test_Do_apiError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, "date is in the future")
	})
	fx, _ := setup(t, mux)

	_, err := fx.client.Do(context.Background(), "/broken", nil)
	apiErr, ok := err.(*core.APIError)
	if assert.True(t, ok, "want *core.APIError, got %T", err) {
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
		assert.Equal(t, "date is in the future", apiErr.Body)
	}
}

func Test_Do_serverUnreachable(t *testing.T) {
	fx, srv := setup(t, http.NewServeMux())
	srv.Close() // nothing listening anymore

	_, err := fx.client.Do(context.Background(), "/anything", nil)
	assert.True(t, core.IsServerUnreachable(err), "want unreachable error, got %v", err)
}

func Test_Do_refreshAndRetry(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", refreshHandler(&refreshCalls, 0))
	mux.HandleFunc("/api/v1/protected", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) != "new-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":"secret"}`)
	})
	fx, _ := setup(t, mux)

	v, err := fx.client.Do(context.Background(), "/protected", nil)
	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"data": "secret"}, v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))

	// session was replaced wholesale
	sess := fx.sessions.Get()
	assert.Equal(t, "new-token", sess.AccessToken)
	assert.Equal(t, "new-refresh", sess.RefreshToken)
	assert.Equal(t, "guru.budi", sess.Username)
}

// N concurrent 401s must share a single refresh exchange.
func Test_Do_singleFlightRefresh(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", refreshHandler(&refreshCalls, 100*time.Millisecond))
	mux.HandleFunc("/api/v1/protected", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) != "new-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	fx, _ := setup(t, mux)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.client.Do(context.Background(), "/protected", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls),
		"refresh endpoint must be hit exactly once")
	assert.Equal(t, "new-token", fx.sessions.Get().AccessToken)
}

func Test_Do_refreshFailureLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/api/v1/protected", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	fx, _ := setup(t, mux)

	_, err := fx.client.Do(context.Background(), "/protected", nil)
	assert.True(t, core.IsUnauthorized(err), "want unauthorized, got %v", err)
	assert.Nil(t, fx.sessions.Get(), "session must be cleared")
}

func Test_Do_secondUnauthorizedLogsOut(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", refreshHandler(&refreshCalls, 0))
	mux.HandleFunc("/api/v1/protected", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized) // even with the fresh token
	})
	fx, _ := setup(t, mux)

	_, err := fx.client.Do(context.Background(), "/protected", nil)
	assert.True(t, core.IsUnauthorized(err))
	assert.Nil(t, fx.sessions.Get())
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))
}

func Test_Do_401WithNoAuthIsNotRefreshed(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", refreshHandler(&refreshCalls, 0))
	mux.HandleFunc("/api/v1/public", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	fx, _ := setup(t, mux)

	_, err := fx.client.Do(context.Background(), "/public", &Options{NoAuth: true})
	apiErr, ok := err.(*core.APIError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&refreshCalls))
	assert.NotNil(t, fx.sessions.Get(), "session must survive a NoAuth 401")
}

func Test_DoInto(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/summary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"present": 21, "total": 25})
	})
	fx, _ := setup(t, mux)

	var out struct {
		Present int `json:"present"`
		Total   int `json:"total"`
	}
	assert.NoError(t, fx.client.DoInto(context.Background(), "/summary", nil, &out))
	assert.Equal(t, 21, out.Present)
	assert.Equal(t, 25, out.Total)
}
