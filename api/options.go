package api

import (
	"net/http"
)

const (
	// DefaultURI is the default base URI of the events API
	DefaultURI = "http://localhost:3000/api/"
)

// Config holds the client settings.
type Config struct {
	URI       string
	Token     string
	UserAgent string
	HTTP      *http.Client
	// NoCookies drops the cookie jar; requests authenticate by token only.
	NoCookies bool
}

// NewConfig returns an anonymous config. Tokens are only set explicitly.
func NewConfig() *Config {
	return &Config{
		URI: DefaultURI,
	}
}

// Option is a function that takes a config struct and modifies it
type Option func(*Config) error

// WithURI sets the base URI of the events API
func WithURI(uri string) Option {
	return func(cfg *Config) error {
		cfg.URI = uri
		return nil
	}
}

// WithToken sets the API key sent as a bearer token. It overrides the
// cookie session for non-browser callers.
func WithToken(token string) Option {
	return func(cfg *Config) error {
		cfg.Token = token
		return nil
	}
}

// WithUserAgent ...
func WithUserAgent(ua string) Option {
	return func(cfg *Config) error {
		cfg.UserAgent = ua
		return nil
	}
}

// WithHTTPClient replaces the default http client. Its Jar, if any,
// carries the session cookie.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *Config) error {
		cfg.HTTP = c
		return nil
	}
}

// WithoutCookies makes the client ignore session cookies. Servers that
// act for many viewers use it so only bearer tokens identify a viewer.
func WithoutCookies() Option {
	return func(cfg *Config) error {
		cfg.NoCookies = true
		return nil
	}
}
