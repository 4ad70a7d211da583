// Package api implements the REST client used by every feature flow: base
// URL resolution (cloud vs local school server), auth header injection,
// edge-mode credentials and single-flight token refresh on 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/core/netmode"
	"github.com/sekolahmbg/mbg-client/core/session"
	"github.com/sekolahmbg/mbg-client/storage/kv"
)

// EdgeTokenHeader carries the edge API key when a school server is used.
const EdgeTokenHeader = "X-School-Token"

type (
	// Options shapes a single API call.
	Options struct {
		Method string // defaults to GET
		// Body is JSON-marshalled unless it is already a string or an
		// io.Reader (multipart uploads pass a reader plus ContentType).
		Body        interface{}
		ContentType string
		Headers     map[string]string
		// NoAuth skips the Authorization header and the 401/refresh flow.
		NoAuth bool
		// BaseURL bypasses the resolver entirely; testing/config escape hatch.
		BaseURL string
	}

	Client struct {
		conf     *core.Config
		sessions *session.Store
		resolver *netmode.Resolver
		secrets  kv.SecretStore
		logger   core.Logger
		http     *http.Client

		refreshGroup singleflight.Group
	}
)

func NewClient(
	conf *core.Config,
	sessions *session.Store,
	resolver *netmode.Resolver,
	secrets kv.SecretStore,
	logger core.Logger,
) *Client {
	return &Client{
		conf:     conf,
		sessions: sessions,
		resolver: resolver,
		secrets:  secrets,
		logger:   core.OrNopLogger(logger),
		http:     &http.Client{Timeout: conf.HTTPTimeout},
	}
}

// Do issues a request and returns the parsed response body: nil for 204,
// a decoded value for JSON responses, the raw text otherwise.
//
// A 401 on an authenticated call triggers exactly one token refresh
// (deduplicated process-wide) and one retry; losing that dance clears the
// session and returns core.ErrUnauthorized.
func (c *Client) Do(ctx context.Context, path string, opts *Options) (interface{}, error) {
	status, cType, body, err := c.roundTrip(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return parseBody(status, cType, body)
}

// DoInto is Do for callers that want the JSON response decoded into out.
// A 204 leaves out untouched.
func (c *Client) DoInto(ctx context.Context, path string, opts *Options, out interface{}) error {
	status, _, body, err := c.roundTrip(ctx, path, opts)
	if err != nil {
		return err
	}
	if status == http.StatusNoContent || len(body) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(body, out), "decoding response")
}

func (c *Client) roundTrip(ctx context.Context, path string, opts *Options) (int, string, []byte, error) {
	if opts == nil {
		opts = &Options{}
	}
	sess := c.sessions.Get()
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = c.resolver.DetermineBaseURL("", sess.RoleOrUnknown())
	}

	reqBody, cType, err := encodeBody(opts)
	if err != nil {
		return 0, "", nil, err
	}

	status, respCType, respBody, err := c.send(ctx, baseURL, path, opts, reqBody, cType, sess)
	if err != nil {
		return 0, "", nil, err
	}

	if status == http.StatusUnauthorized && !opts.NoAuth {
		fresh, rErr := c.refreshSession(ctx, baseURL)
		if rErr != nil {
			c.logger.Info("api: token refresh failed, logging out",
				map[string]interface{}{"err": rErr.Error()})
			c.sessions.Clear()
			return 0, "", nil, core.ErrUnauthorized
		}
		c.logger.Debug("api: session refreshed, retrying request")
		status, respCType, respBody, err = c.send(ctx, baseURL, path, opts, reqBody, cType, fresh)
		if err != nil {
			return 0, "", nil, err
		}
		if status == http.StatusUnauthorized {
			c.sessions.Clear()
			return 0, "", nil, core.ErrUnauthorized
		}
	}

	if status < 200 || status > 299 {
		return 0, "", nil, core.NewAPIError(status, strings.TrimSpace(string(respBody)))
	}
	return status, respCType, respBody, nil
}

// send performs one HTTP exchange. Transport failures are translated into a
// ServerUnreachableError so callers can tell "server down" from "bad
// request".
func (c *Client) send(
	ctx context.Context,
	baseURL, path string,
	opts *Options,
	body []byte,
	cType string,
	sess *session.Session,
) (int, string, []byte, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, joinURL(baseURL, path), reader)
	if err != nil {
		return 0, "", nil, errors.Wrap(err, "building request")
	}

	req.Header.Set("Accept", "application/json")
	if cType != "" {
		req.Header.Set("Content-Type", cType)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if sess != nil && !opts.NoAuth && sess.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}
	// the edge credential rides along regardless of auth mode
	if c.secrets != nil {
		if key, ok := c.secrets.GetItem(kv.EdgeAPIKeyName); ok && key != "" {
			req.Header.Set(EdgeTokenHeader, key)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		local := c.resolver != nil && c.resolver.Mode() == netmode.ModeLocal
		return 0, "", nil, core.NewServerUnreachableError(req.URL.Host, local, err)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, errors.Wrap(err, "reading response")
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), respBody, nil
}

// encodeBody buffers the request body so the 401 retry can replay it.
func encodeBody(opts *Options) ([]byte, string, error) {
	cType := opts.ContentType
	if ct, ok := opts.Headers["Content-Type"]; ok && cType == "" {
		cType = ct
	}

	switch body := opts.Body.(type) {
	case nil:
		return nil, cType, nil
	case string:
		if cType == "" {
			cType = "application/json"
		}
		return []byte(body), cType, nil
	case io.Reader:
		raw, err := ioutil.ReadAll(body)
		if err != nil {
			return nil, "", errors.Wrap(err, "reading request body")
		}
		return raw, cType, nil
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, "", errors.Wrap(err, "encoding request body")
		}
		if cType == "" {
			cType = "application/json"
		}
		return raw, cType, nil
	}
}

func parseBody(status int, cType string, body []byte) (interface{}, error) {
	if status == http.StatusNoContent || len(body) == 0 {
		return nil, nil
	}
	if strings.Contains(cType, "application/json") {
		var v interface{}
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, errors.Wrap(err, "decoding response")
		}
		return v, nil
	}
	return string(body), nil
}

// joinURL joins base and path with a single separator regardless of
// leading/trailing slashes on either side.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
