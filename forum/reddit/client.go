// Reddit API implementation of forum.Forum.
//
// Requests go through the OAuth API host with a script-app password grant. The access token is held in a
// cachestore.CacheStore until it expires, so that it can be shared between runs (and processes) when backed
// by redis.
// Requests are rate limited client-side, and retried on transient failures by the underlying HTTP client.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"

	"github.com/modkit/tradeflair/config"
	"github.com/modkit/tradeflair/flair/cachestore"
	"github.com/modkit/tradeflair/forum"
	"github.com/modkit/tradeflair/util"
)

var errUnauthorized = errors.New("reddit: unauthorized")

// Non-success HTTP response from the API.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit %s: HTTP %d: %s", e.Path, e.StatusCode, e.Body)
}

type Client struct {
	Config    config.RedditConfig
	Subreddit string
	Logger    *slog.Logger
	Client    *http.Client
	Limiter   *rate.Limiter
	Tokens    cachestore.CacheStore
	Now       func() time.Time

	// ids known to name submissions, as opposed to comments
	links *xsync.MapOf[string, bool]
	// last seen flair text per (lower-case) user, preserved when the css class is rewritten
	flairText *xsync.MapOf[string, string]
}

var _ forum.Forum = (*Client)(nil)

func NewClient(cfg config.RedditConfig, subreddit string, logger *slog.Logger, tokens cachestore.CacheStore) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if tokens == nil {
		tokens = cachestore.NewMemCacheStore(16, 24*time.Hour)
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return &Client{
		Config:    cfg,
		Subreddit: subreddit,
		Logger:    logger.With("system", "reddit"),
		Client:    util.RobustHTTPClient(logger),
		Limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 5),
		Tokens:    tokens,
		Now:       time.Now,
		links:     xsync.NewMapOf[string, bool](),
		flairText: xsync.NewMapOf[string, string](),
	}
}

func (c *Client) BotName() string {
	return c.Config.Username
}

type accessToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type passwordGrant struct {
	GrantType string `url:"grant_type"`
	Username  string `url:"username"`
	Password  string `url:"password"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	raw, err := c.Tokens.Get(ctx, "reddit-token", c.Config.Username)
	if err != nil {
		c.Logger.Warn("failed to read cached token", "err", err)
	} else if raw != "" {
		var tok accessToken
		if err := json.Unmarshal([]byte(raw), &tok); err == nil && c.Now().Before(tok.ExpiresAt) {
			return tok.AccessToken, nil
		}
	}

	tok, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return "", err
	}
	if err := c.Tokens.Set(ctx, "reddit-token", c.Config.Username, string(b), tok.ExpiresAt.Sub(c.Now())); err != nil {
		c.Logger.Warn("failed to cache token", "err", err)
	}
	return tok.AccessToken, nil
}

func (c *Client) fetchToken(ctx context.Context) (*accessToken, error) {
	form, err := query.Values(passwordGrant{
		GrantType: "password",
		Username:  c.Config.Username,
		Password:  c.Config.Password,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Config.ClientID, c.Config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.Config.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting access token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp, "access_token")
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding access token: %w", err)
	}
	if body.Error != "" || body.AccessToken == "" {
		return nil, fmt.Errorf("access token refused: %q", body.Error)
	}
	c.Logger.Info("fetched new access token", "expires_in", body.ExpiresIn)
	return &accessToken{
		AccessToken: body.AccessToken,
		// refresh a minute early
		ExpiresAt: c.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute),
	}, nil
}

// do performs one API call. params is a go-querystring tagged struct (or nil), sent as the query string on
// GET and as a form body otherwise. A 401 response drops the cached token and retries once.
func (c *Client) do(ctx context.Context, method, path string, params any, out any) error {
	err := c.doOnce(ctx, method, path, params, out)
	if errors.Is(err, errUnauthorized) {
		if perr := c.Tokens.Purge(ctx, "reddit-token", c.Config.Username); perr != nil {
			c.Logger.Warn("failed to purge cached token", "err", perr)
		}
		err = c.doOnce(ctx, method, path, params, out)
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, params any, out any) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	vals := url.Values{}
	if params != nil {
		vals, err = query.Values(params)
		if err != nil {
			return err
		}
	}
	vals.Set("raw_json", "1")

	u := strings.TrimRight(c.Config.BaseURL, "/") + path
	var body io.Reader
	if method == http.MethodGet {
		u += "?" + vals.Encode()
	} else {
		body = strings.NewReader(vals.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("User-Agent", c.Config.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("reddit %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("reddit %s: %w", path, forum.ErrNotFound)
	case resp.StatusCode >= 300:
		return apiError(resp, path)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding reddit %s response: %w", path, err)
	}
	return nil
}

func apiError(resp *http.Response, path string) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{StatusCode: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(b))}
}

// fullname prefixes a bare id with its kind: submissions seen through this client are "t3", everything else
// is assumed to be a comment.
func (c *Client) fullname(id string) string {
	if strings.HasPrefix(id, "t1_") || strings.HasPrefix(id, "t3_") || strings.HasPrefix(id, "t4_") {
		return id
	}
	if _, ok := c.links.Load(id); ok {
		return "t3_" + id
	}
	return "t1_" + id
}

func (c *Client) rememberLink(id string) {
	c.links.Store(id, true)
}

func (c *Client) rememberFlairText(user, text string) {
	c.flairText.Store(strings.ToLower(user), text)
}

func (c *Client) lastFlairText(user string) string {
	text, _ := c.flairText.Load(strings.ToLower(user))
	return text
}
