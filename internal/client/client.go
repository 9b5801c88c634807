// Package client is the request layer every resource call goes through. Each
// public method returns a models.Envelope and never a Go error: transport,
// HTTP and decoding failures all end up in the envelope's error branch.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/org/stockdesk/internal/codec"
	"github.com/org/stockdesk/internal/session"
	"github.com/org/stockdesk/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout is the per-request ceiling.
	DefaultTimeout = 30 * time.Second

	// AuthHeader mirrors the bearer token for backends that read it directly.
	AuthHeader = "X-Auth-Token"

	maxBodyBytes = 10 << 20

	msgAuthRequired = "Authentication required. Please log in again."
	msgNetwork      = "Unable to reach the server. Check your connection and try again."
	msgTimeout      = "The server took too long to respond."
)

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// SessionStore persists the access token between requests.
type SessionStore interface {
	Load() (session.AuthSession, bool)
	Save(sess session.AuthSession) error
	Clear() error
}

// Client talks to the reseller backend.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions SessionStore
	fresh    *codec.Freshness
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithClock sets the clock used for freshness tokens.
func WithClock(clock codec.Clock) Option {
	return func(c *Client) { c.fresh = codec.NewFreshness(clock) }
}

// New creates a Client.
func New(cfg Config, sessions SessionStore, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
		fresh:    codec.NewFreshness(codec.SystemClock{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type authMode int

const (
	authNone authMode = iota
	// authOptional attaches the token when one is stored. A 401/403 answer
	// to an attached token becomes authentication_required.
	authOptional
	// authRequired also refuses to send without a token.
	authRequired
)

type call struct {
	resource string
	method   string
	path     string
	body     any
	auth     authMode
}

// request sends one call and normalizes the outcome. It attempts exactly
// once. Cancellation of ctx is ignored once the call is issued; the
// transport timeout still applies.
func request[T any](ctx context.Context, c *Client, cl call) (env models.Envelope[T]) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("resource", cl.resource).Interface("panic", r).Msg("request panicked")
			env = unknownFailure[T]()
		}
		observe(cl.resource, env.Success, env.Kind(), time.Since(start))
	}()

	var token string
	if cl.auth != authNone {
		if sess, ok := c.sessions.Load(); ok {
			token = sess.Token
		}
		if token == "" && cl.auth == authRequired {
			log.Debug().Str("resource", cl.resource).Msg("no stored credential, request not sent")
			return authFailure[T]()
		}
	}

	var bodyReader io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			log.Warn().Err(err).Str("resource", cl.resource).Msg("marshaling request body")
			return unknownFailure[T]()
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), cl.method, c.baseURL+cl.path, bodyReader)
	if err != nil {
		log.Warn().Err(err).Str("resource", cl.resource).Msg("building request")
		return unknownFailure[T]()
	}
	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(AuthHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("method", cl.method).Str("path", cl.path).Msg("transport failure")
		return networkFailure[T](err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Str("method", cl.method).Str("path", cl.path).Msg("reading response body")
		return networkFailure[T](err)
	}

	log.Debug().
		Str("method", cl.method).
		Str("path", cl.path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if token != "" && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return authFailure[T]()
	}
	return normalize[T](resp.StatusCode, data)
}

// envelopeShape detects whether a body already has the envelope shape.
type envelopeShape struct {
	Success *bool            `json:"success"`
	Error   *models.APIError `json:"error"`
}

// normalize turns a status code and body into an envelope.
func normalize[T any](status int, body []byte) models.Envelope[T] {
	var shape envelopeShape
	isObject := json.Unmarshal(body, &shape) == nil

	if status >= 200 && status < 300 {
		if shape.Success == nil {
			// Bare payload: the body is the data itself.
			if len(bytes.TrimSpace(body)) == 0 {
				return models.OK[T](nil)
			}
			var v T
			if err := json.Unmarshal(body, &v); err != nil {
				log.Warn().Err(err).Msg("decoding response payload")
				return unknownFailure[T]()
			}
			return models.OK(&v)
		}
		var env models.Envelope[T]
		if err := json.Unmarshal(body, &env); err != nil {
			log.Warn().Err(err).Msg("decoding response envelope")
			return unknownFailure[T]()
		}
		return settle(env)
	}

	if isObject && shape.Error != nil {
		env := models.Envelope[T]{Error: shape.Error}
		return settle(env)
	}
	return models.Fail[T](models.KindAPI, models.NumericID(int64(status)), statusMessage(status))
}

// settle enforces the success/error invariant on a decoded envelope.
func settle[T any](env models.Envelope[T]) models.Envelope[T] {
	if env.Success {
		env.Error = nil
		return env
	}
	if env.Error == nil {
		return unknownFailure[T]()
	}
	env.Data = nil
	if env.Error.Kind == "" {
		env.Error.Kind = models.KindAPI
	}
	return env
}

func statusMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

func authFailure[T any]() models.Envelope[T] {
	return models.Fail[T](models.KindAuthRequired, models.TextID(models.IDAuthRequired), msgAuthRequired)
}

func unknownFailure[T any]() models.Envelope[T] {
	return models.Fail[T](models.KindUnknown, models.TextID(models.IDUnknown), models.MsgUnknown)
}

func networkFailure[T any](err error) models.Envelope[T] {
	msg := msgNetwork
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		msg = msgTimeout
	}
	return models.Fail[T](models.KindNetwork, models.TextID(models.IDNetwork), msg)
}
