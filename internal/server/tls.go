package server

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/crypto/acme/autocert"
)

// SetupTLS builds an autocert-backed TLS config for a public wss endpoint.
// domain must be the exact host clients connect to.
func SetupTLS(domain, cacheDir string, log *slog.Logger) *tls.Config {
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		log.Warn("failed to create certificate cache directory", "dir", cacheDir, "error", err)
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domain),
		Cache:      autocert.DirCache(cacheDir),
	}

	// ACME HTTP-01 challenges arrive on :80.
	go func() {
		if err := http.ListenAndServe(":80", manager.HTTPHandler(nil)); err != nil {
			log.Warn("acme challenge listener stopped", "error", err)
		}
	}()

	return &tls.Config{
		GetCertificate: manager.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}
