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

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/vento-lexops/ventoagent/lexnet"
)

const (
	MetadataFileName = "metadata.json"
	SummaryFileName  = "NOTIFICATION.txt"

	maxCourtLen = 30
)

// Store writes retrieved notifications into the download tree:
//
//	<root>/<YYYY-MM-DD>/<sanitized-court>_<sanitized-procedure>/
//
// Two items may legitimately map to the same directory; metadata
// disambiguates by notification id.
type Store struct {
	Root string
}

func New(root string) *Store {
	return &Store{Root: root}
}

type metadata struct {
	NotificationID string `json:"notification_id"`
	Court          string `json:"court"`
	Procedure      string `json:"procedure_number"`
	Type           string `json:"notification_type"`
	ReceivedAt     string `json:"received_date"`
	Urgent         bool   `json:"is_urgent"`
	Account        string `json:"account"`
	DownloadedAt   string `json:"downloaded_at"`
}

// ItemDir returns the deterministic destination directory for an item.
func (s *Store) ItemDir(n *lexnet.Notification) string {
	name := sanitizeCourt(n.Court) + "_" + sanitizeProcedure(n.Procedure)
	return filepath.Join(s.Root, n.ReceivedAt.Format("2006-01-02"), name)
}

// WriteNotification records a successful retrieval: it creates the item's
// directory and writes the metadata record and the human-readable summary
// into it. The metadata write is atomic (temp file + rename).
func (s *Store) WriteNotification(n *lexnet.Notification) (string, error) {
	dir := s.ItemDir(n)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	now := time.Now()
	meta := metadata{
		NotificationID: n.ID,
		Court:          n.Court,
		Procedure:      n.Procedure,
		Type:           n.Type,
		ReceivedAt:     n.ReceivedAt.Format(time.RFC3339),
		Urgent:         n.Urgent,
		Account:        n.AccountName,
		DownloadedAt:   now.Format(time.RFC3339),
	}

	raw, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return "", err
	}

	metaPath := filepath.Join(dir, MetadataFileName)
	if err := writeFileAtomic(metaPath, raw); err != nil {
		return "", fmt.Errorf("writing %s: %w", metaPath, err)
	}

	summaryPath := filepath.Join(dir, SummaryFileName)
	if err := writeFileAtomic(summaryPath, []byte(summaryText(n, now))); err != nil {
		return "", fmt.Errorf("writing %s: %w", summaryPath, err)
	}

	return dir, nil
}

func summaryText(n *lexnet.Notification, downloadedAt time.Time) string {
	urgent := "No"
	if n.Urgent {
		urgent = "Yes"
	}

	var b strings.Builder
	b.WriteString("LEXNET NOTIFICATION\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "ID: %s\n", n.ID)
	fmt.Fprintf(&b, "Court: %s\n", n.Court)
	fmt.Fprintf(&b, "Procedure: %s\n", n.Procedure)
	fmt.Fprintf(&b, "Type: %s\n", n.Type)
	fmt.Fprintf(&b, "Received: %s\n", n.ReceivedAt.Format("02/01/2006 15:04"))
	fmt.Fprintf(&b, "Urgent: %s\n", urgent)
	fmt.Fprintf(&b, "Account: %s\n", n.AccountName)
	fmt.Fprintf(&b, "\nDownloaded: %s\n", downloadedAt.Format("02/01/2006 15:04:05"))
	return b.String()
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return nil
}

// sanitizeCourt keeps letters, digits, spaces, hyphens and underscores
// from the first maxCourtLen runes of the court name.
func sanitizeCourt(court string) string {
	runes := []rune(court)
	if len(runes) > maxCourtLen {
		runes = runes[:maxCourtLen]
	}

	var b strings.Builder
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}

// sanitizeProcedure replaces path separator characters so a case
// reference like "1234/2024" stays within one directory component.
func sanitizeProcedure(proc string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '-'
		default:
			return r
		}
	}, proc)
}
