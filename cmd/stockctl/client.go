package main

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/org/stockdesk/internal/client"
	"github.com/org/stockdesk/internal/session"
)

// newSessions keeps remembered logins under the config dir and the rest in
// a file scoped to the invoking shell.
func newSessions() *session.Store {
	return session.NewStore(
		session.NewFileSlot(session.DurablePath(configDir())),
		session.NewFileSlot(session.TabPath()),
	)
}

// newClient creates an API client from the current config.
func newClient() *client.Client {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSCACert != "" {
		data, err := os.ReadFile(cfg.TLSCACert)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.TLSCACert).Msg("reading CA certificate")
		} else {
			pool := x509.NewCertPool()
			pool.AppendCertsFromPEM(data)
			tlsCfg.RootCAs = pool
		}
	}

	httpClient := &http.Client{
		Timeout:   requestTimeout(cfg.Timeout),
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}
	return client.New(client.Config{BaseURL: cfg.Address, Timeout: cfg.Timeout}, newSessions(), client.WithHTTPClient(httpClient))
}

// requestTimeout keeps a ceiling on every call even when the configured
// timeout is zero or negative.
func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return client.DefaultTimeout
	}
	return d
}
