package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 50 << 20

// TokenSource supplies the bearer token for authenticated calls. An empty
// token means the request goes out anonymously.
type TokenSource interface {
	Token() string
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

// Client talks to the fraud-monitoring backend over REST.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  staticToken(""),
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) SetTokenSource(ts TokenSource) {
	if ts == nil {
		ts = staticToken("")
	}
	c.tokens = ts
}

func (c *Client) BaseURL() string { return c.baseURL }

// ResolveURL makes a backend-provided link absolute.
func (c *Client) ResolveURL(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return c.baseURL + "/" + strings.TrimLeft(link, "/")
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	token       string
}

func (c *Client) jsonRequest(method, path string, payload interface{}) (request, error) {
	r := request{method: method, path: path, token: c.tokens.Token()}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return r, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		r.body = bytes.NewReader(b)
		r.contentType = "application/json"
	}
	return r, nil
}

// do sends r and returns the raw body of a 2xx response. Anything else
// becomes a *RequestError carrying the body.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	u := c.ResolveURL(r.path)
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", r.method, r.path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Str("method", r.method).Str("path", r.path).Int("status", resp.StatusCode).Msg("backend request failed")
		return nil, &RequestError{Method: r.method, Path: r.path, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) doJSON(ctx context.Context, r request, out interface{}) error {
	body, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.doJSON(ctx, request{method: http.MethodGet, path: path, query: query, token: c.tokens.Token()}, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	r, err := c.jsonRequest(method, path, payload)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, r, out)
}

// Fetch downloads a backend-provided link, relative or absolute, with the
// current bearer token attached.
func (c *Client) Fetch(ctx context.Context, link string) ([]byte, error) {
	return c.do(ctx, request{method: http.MethodGet, path: link, token: c.tokens.Token()})
}
