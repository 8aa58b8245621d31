/*
 * VentoAgent - Copyright (C) 2024 Vento LexOps
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/vento-lexops/ventoagent/lexnet"
	"github.com/vento-lexops/ventoagent/store"
)

// NewSession builds an authenticated-capable HTTP session for one
// account. The store-thumbprint identity variant needs the platform
// certificate store and is not supported by this client; such accounts
// get a typed error the orchestrator reports as a per-account failure.
func (f *Factory) NewSession(cfg *lexnet.SessionConfig) (lexnet.Session, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, err
	}

	if cfg.Identity.Kind() == lexnet.IdentityStore {
		return nil, lexnet.ErrStoreIdentity
	}

	cert, err := loadClientCertificate(cfg.Identity)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	baseURL := f.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	maxTries := f.MaxTries
	if maxTries == 0 {
		maxTries = defaultMaxTries
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	return &session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Jar:     jar,
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				},
			},
		},
		downloadRoot: cfg.DownloadRoot,
		maxTries:     maxTries,
		logger:       logger,
	}, nil
}

// loadClientCertificate decodes the file+secret identity variant into a
// TLS client certificate.
func loadClientCertificate(id lexnet.Identity) (tls.Certificate, error) {
	raw, err := os.ReadFile(id.File)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading certificate %s: %w", id.File, err)
	}

	secret := id.Secret
	if secret == "" && id.SecretFile != "" {
		data, err := os.ReadFile(id.SecretFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("reading certificate secret: %w", err)
		}
		secret = strings.TrimSpace(string(data))
	}

	key, leaf, chain, err := pkcs12.DecodeChain(raw, secret)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decoding certificate %s: %w", id.File, err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	for _, c := range chain {
		cert.Certificate = append(cert.Certificate, c.Raw)
	}

	return cert, nil
}

func (s *session) Authenticate() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return lexnet.ErrSessionClosed
	}
	s.mu.Unlock()

	resp, err := s.get(loginPath)
	if err != nil {
		s.logger.WithError(err).Error("session_auth_failed")
		return fmt.Errorf("%w: %v", lexnet.ErrAuthFailed, err)
	}
	_ = resp.Body.Close()

	s.mu.Lock()
	s.authed = true
	s.mu.Unlock()

	s.logger.Info("session_authenticated")
	return nil
}

func (s *session) ListPending() ([]*lexnet.Notification, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}

	resp, err := s.get(inboxPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var wire []wireNotification
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding inbox: %w", err)
	}

	items := make([]*lexnet.Notification, 0, len(wire))
	for _, w := range wire {
		received, err := time.Parse(time.RFC3339, w.ReceivedAt)
		if err != nil {
			s.logger.WithError(err).WithField("id", w.ID).Warn("session_bad_received_date")
			received = time.Now()
		}

		items = append(items, &lexnet.Notification{
			ID:         w.ID,
			Court:      w.Court,
			Procedure:  w.Procedure,
			Type:       w.Type,
			ReceivedAt: received,
			Urgent:     w.Urgent,
		})
	}

	s.logger.WithField("count", len(items)).Info("session_listed_pending")
	return items, nil
}

// Retrieve downloads the content for each item into its destination
// directory. A failing item is reported in its result and does not stop
// the rest.
func (s *session) Retrieve(items []*lexnet.Notification) ([]lexnet.ItemResult, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}

	st := store.New(s.downloadRoot)

	results := make([]lexnet.ItemResult, 0, len(items))
	for _, n := range items {
		results = append(results, lexnet.ItemResult{
			ID:  n.ID,
			Err: s.retrieveOne(st, n),
		})
	}

	return results, nil
}

func (s *session) retrieveOne(st *store.Store, n *lexnet.Notification) error {
	resp, err := s.get(inboxPath + "/" + n.ID + "/descarga")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	dir := st.ItemDir(n)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dest := filepath.Join(dir, contentFileName(resp))
	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return err
	}

	s.logger.WithFields(log.Fields{"id": n.ID, "path": dest}).Info("session_retrieved_item")
	return nil
}

func contentFileName(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, after, ok := strings.Cut(cd, "filename="); ok {
			name := strings.Trim(strings.TrimSpace(after), `"`)
			name = filepath.Base(name)
			if name != "" && name != "." && name != string(filepath.Separator) {
				return name
			}
		}
	}
	return "document.pdf"
}

func (s *session) checkUsable() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lexnet.ErrSessionClosed
	}
	if !s.authed {
		return lexnet.ErrNotAuthenticated
	}
	return nil
}

// get issues a GET with retry on transport errors and 5xx responses.
// 4xx responses are permanent.
func (s *session) get(path string) (*http.Response, error) {
	op := func() (*http.Response, error) {
		resp, err := s.client.Get(s.baseURL + path)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("server error: %s", resp.Status)
		}
		if resp.StatusCode >= 400 {
			_ = resp.Body.Close()
			return nil, backoff.Permanent(fmt.Errorf("request failed: %s", resp.Status))
		}

		return resp, nil
	}

	return backoff.Retry(context.Background(), op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxTries))
}

// Close is idempotent and safe even if Authenticate was never called.
func (s *session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.authed = false
	s.mu.Unlock()

	s.client.CloseIdleConnections()
	s.logger.Trace("session_closed")
}
