// Package memos is a read-only client for the Memos note service. It speaks
// both the legacy offset-paged API and the current token-paged one, picking
// between them from the server version.
package memos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"golang.org/x/mod/semver"
)

// currentSince is the first server version with the token-paged API.
const currentSince = "v0.22.0"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("memos: %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to one Memos server with one access token.
type Client struct {
	http       *resty.Client
	logger     *slog.Logger
	newBackoff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithBackoff replaces the retry policy for GET requests.
func WithBackoff(factory func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackoff = factory }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the server at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetAuthToken(token).
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
		logger: slog.Default(),
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends a request, retrying transport failures and 5xx/429 responses.
// Other statuses are returned at once as *StatusError.
func (c *Client) do(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		req := c.http.R().SetContext(ctx)
		if params != nil {
			req.SetQueryParamsFromValues(params)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("memos: request failed", slog.String("path", path),
				slog.Int("attempt", attempt), slog.String("error", err.Error()))
			return fmt.Errorf("memos: %s %s: %w", method, path, err)
		}
		if resp.IsError() {
			serr := &StatusError{Method: method, Path: path, Code: resp.StatusCode(), Body: truncate(resp.String(), 200)}
			if resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests {
				c.logger.Warn("memos: server error", slog.String("path", path),
					slog.Int("attempt", attempt), slog.Int("status", resp.StatusCode()))
				return serr
			}
			return backoff.Permanent(serr)
		}
		body = resp.Body()
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(c.newBackoff(), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.callJSON(ctx, http.MethodGet, path, params, out)
}

func (c *Client) callJSON(ctx context.Context, method, path string, params url.Values, out any) error {
	body, err := c.do(ctx, method, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("memos: decode %s: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Discover detects the server version, picks the protocol and resolves the
// token's user.
func (c *Client) Discover(ctx context.Context) (Session, error) {
	var s Session

	var profile workspaceProfile
	if err := c.getJSON(ctx, "/api/v1/workspace/profile", nil, &profile); err == nil {
		s.Version = profile.Version
		s.Protocol = protocolFor(profile.Version, Current)
	} else {
		if ctx.Err() != nil {
			return s, ctx.Err()
		}
		var status legacyStatus
		if err2 := c.getJSON(ctx, "/api/v1/status", nil, &status); err2 != nil {
			return s, fmt.Errorf("memos: detect version: %w", errors.Join(err, err2))
		}
		s.Version = status.Profile.Version
		s.Protocol = protocolFor(status.Profile.Version, Legacy)
	}

	switch s.Protocol {
	case Current:
		var st authStatus
		if err := c.callJSON(ctx, http.MethodPost, "/api/v1/auth/status", nil, &st); err != nil {
			return s, fmt.Errorf("memos: current user: %w", err)
		}
		if st.Name == "" {
			return s, errors.New("memos: current user: empty name")
		}
		s.User = st.Name
	default:
		var me legacyUser
		if err := c.getJSON(ctx, "/api/v1/user/me", nil, &me); err != nil {
			return s, fmt.Errorf("memos: current user: %w", err)
		}
		s.User = strconv.FormatInt(me.ID, 10)
	}
	return s, nil
}

// protocolFor compares version with the first current release. Versions that
// do not parse fall back to def.
func protocolFor(version string, def Protocol) Protocol {
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return def
	}
	if semver.Compare(v, currentSince) >= 0 {
		return Current
	}
	return Legacy
}

// ListPage fetches the page at cursor, newest records first.
func (c *Client) ListPage(ctx context.Context, s Session, cur Cursor) (Page, error) {
	if s.Protocol == Current {
		params := url.Values{}
		params.Set("pageSize", strconv.Itoa(PageSize))
		params.Set("filter", fmt.Sprintf("creator == '%s'", s.User))
		if cur.Token != "" {
			params.Set("pageToken", cur.Token)
		}
		var list currentList
		if err := c.getJSON(ctx, "/api/v1/memos", params, &list); err != nil {
			return Page{}, err
		}
		page := Page{Next: Cursor{Token: list.NextPageToken}, More: list.NextPageToken != ""}
		for _, m := range list.Memos {
			page.Records = append(page.Records, m.record())
		}
		return page, nil
	}

	params := url.Values{}
	params.Set("creatorId", s.User)
	params.Set("rowStatus", "NORMAL")
	params.Set("limit", strconv.Itoa(PageSize))
	params.Set("offset", strconv.Itoa(cur.Offset))
	var list []legacyMemo
	if err := c.getJSON(ctx, "/api/v1/memo", params, &list); err != nil {
		return Page{}, err
	}
	page := Page{Next: Cursor{Offset: cur.Offset + len(list)}, More: len(list) >= PageSize}
	for _, m := range list {
		page.Records = append(page.Records, m.record())
	}
	return page, nil
}

// Download fetches the binary content of an attachment stored on the server.
func (c *Client) Download(ctx context.Context, s Session, a Attachment) ([]byte, error) {
	var p string
	switch {
	case s.Protocol == Current && a.Name != "":
		p = "/file/" + a.Name + "/" + url.PathEscape(a.Filename)
	case a.UID != "":
		p = "/o/r/" + url.PathEscape(a.UID)
	default:
		p = "/o/r/" + url.PathEscape(a.ID)
	}
	return c.do(ctx, http.MethodGet, p, nil)
}
