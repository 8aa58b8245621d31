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
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the production LexNET endpoint.
	DefaultBaseURL = "https://lexnet.justicia.es"

	loginPath = "/lexnetcomunicaciones"
	inboxPath = "/lexnetcomunicaciones/bandeja"

	defaultMaxTries = 3
)

// Factory builds sessions against one LexNET endpoint. The zero value
// targets production with default retry behaviour.
type Factory struct {
	BaseURL  string
	MaxTries uint
}

type session struct {
	baseURL      string
	client       *http.Client
	downloadRoot string
	maxTries     uint
	logger       *log.Entry

	mu     sync.Mutex
	authed bool
	closed bool
}

// wireNotification is the inbox listing's JSON shape.
type wireNotification struct {
	ID         string `json:"id"`
	Court      string `json:"court"`
	Procedure  string `json:"procedure_number"`
	Type       string `json:"type"`
	ReceivedAt string `json:"received_at"`
	Urgent     bool   `json:"urgent"`
}
