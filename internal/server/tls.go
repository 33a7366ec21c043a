package server

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"
)

// certReloader serves a key pair from disk and picks up replaced files on
// the next handshake.
type certReloader struct {
	certPath string
	keyPath  string
	logger   *slog.Logger

	mu      sync.Mutex
	cert    *tls.Certificate
	modTime time.Time
}

// NewTLSConfig loads certPath/keyPath and returns a config that reloads
// them when either file changes.
func NewTLSConfig(certPath, keyPath string, logger *slog.Logger) (*tls.Config, error) {
	if certPath == "" || keyPath == "" {
		return nil, errors.New("server: tls cert and key required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &certReloader{certPath: certPath, keyPath: keyPath, logger: logger}
	r.mu.Lock()
	err := r.reloadLocked()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.getCertificate,
	}, nil
}

func (r *certReloader) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if latest, err := r.latestModTime(); err == nil && latest.After(r.modTime) {
		if err := r.reloadLocked(); err != nil {
			r.logger.Warn("tls reload failed, keeping previous certificate", "err", err)
		}
	}
	if r.cert == nil {
		return nil, errors.New("server: tls certificate not loaded")
	}
	return r.cert, nil
}

// latestModTime is the newer of the two file modification times.
func (r *certReloader) latestModTime() (time.Time, error) {
	certInfo, err := os.Stat(r.certPath)
	if err != nil {
		return time.Time{}, err
	}
	keyInfo, err := os.Stat(r.keyPath)
	if err != nil {
		return time.Time{}, err
	}
	if keyInfo.ModTime().After(certInfo.ModTime()) {
		return keyInfo.ModTime(), nil
	}
	return certInfo.ModTime(), nil
}

func (r *certReloader) reloadLocked() error {
	latest, err := r.latestModTime()
	if err != nil {
		return err
	}
	pair, err := tls.LoadX509KeyPair(r.certPath, r.keyPath)
	if err != nil {
		return err
	}
	r.cert = &pair
	r.modTime = latest
	r.logger.Info("tls certificate loaded", "cert", r.certPath)
	return nil
}
