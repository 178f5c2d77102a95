// Package backend is the typed client for the storefront's backend REST
// API. It owns bearer-token attachment, the fixed request timeout, and the
// normalization of every failure into the taxonomy in error.go. It never
// retries: callers decide what a failure means for their flow.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds every request; exceeding it classifies as a
	// timeout, not a server error.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1048576
)

// TokenProvider supplies the short-lived bearer credential for outbound
// requests. A failure (or an empty token) degrades the request to
// unauthenticated rather than blocking it.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to the TokenProvider interface.
type TokenProviderFunc func(ctx context.Context) (string, error)

func (f TokenProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

type Config struct {
	URL     string
	Timeout time.Duration
	Tokens  TokenProvider
	Log     logrus.FieldLogger
}

type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenProvider
	log    logrus.FieldLogger
}

// New builds a backend client. Tokens may be nil, in which case every
// request is sent unauthenticated.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	return &Client{
		base:   base,
		http:   &http.Client{Timeout: timeout},
		tokens: cfg.Tokens,
		log:    log,
	}, nil
}

type errorBody struct {
	Error  string `json:"error"`
	Errors []any  `json:"errors"`
}

func (b errorBody) joinErrors() string {
	parts := make([]string, 0, len(b.Errors))
	for _, e := range b.Errors {
		parts = append(parts, fmt.Sprintf("%v", e))
	}
	return strings.Join(parts, "; ")
}

// do performs one request against the backend. A non-nil out must be a
// pointer; the response body is decoded into it on 2xx. The returned
// status is zero when no response was received.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	hadToken := false
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err == nil {
			if tok = strings.TrimSpace(tok); tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
				hadToken = true
			}
		} else {
			// Signed out or provider failure: continue unauthenticated.
			c.log.WithField("path", path).WithField("message", err).Debug("no session token")
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded)
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			timeout = true
		}

		c.log.WithFields(logrus.Fields{
			"method":  method,
			"path":    path,
			"timeout": timeout,
			"message": err,
		}).Warn("backend unreachable")

		return 0, netError(err, timeout)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return res.StatusCode, netError(err, false)
	}

	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		if out == nil {
			return res.StatusCode, nil
		}

		// This client speaks JSON only; anything else is a protocol
		// violation even on success.
		mt, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
		if mt != "application/json" {
			err := fmt.Errorf("expected a JSON response, got %q", res.Header.Get("Content-Type"))
			return res.StatusCode, &Error{Kind: KindRequestFailed, Status: res.StatusCode, Message: err.Error(), HadToken: hadToken, err: err}
		}

		if err := json.Unmarshal(raw, out); err != nil {
			return res.StatusCode, &Error{Kind: KindRequestFailed, Status: res.StatusCode, Message: "cannot decode backend response", HadToken: hadToken, err: err}
		}
		return res.StatusCode, nil
	}

	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	retryAfter := 0
	if ra := res.Header.Get("Retry-After"); ra != "" {
		if n, err := strconv.Atoi(ra); err == nil {
			retryAfter = n
		}
	}

	// Avoid logging response bodies: they may carry user data.
	c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"statuscode": res.StatusCode,
	}).Warn("backend request failed")

	return res.StatusCode, serverError(res.StatusCode, hadToken, eb, retryAfter)
}
