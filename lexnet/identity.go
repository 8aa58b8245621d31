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

package lexnet

import (
	"errors"
	"fmt"
)

type IdentityKind int

const (
	IdentityNone IdentityKind = iota
	IdentityStore
	IdentityFile
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityNone:
		return "none"
	case IdentityStore:
		return "store"
	case IdentityFile:
		return "file"
	default:
		panic("invalid_identity_kind")
	}
}

var (
	errIdentityEmpty     = errors.New("identity has no variant set")
	errIdentityAmbiguous = errors.New("identity has both store and file variants set")
	errIdentityNoSecret  = errors.New("file identity requires a secret")
)

// Identity is the credential reference needed to authenticate as an
// account. Exactly one variant is set: a platform certificate store
// thumbprint, or a certificate file plus its secret.
type Identity struct {
	Thumbprint string `json:"certificate_thumbprint,omitempty"`
	File       string `json:"certificate_file,omitempty"`
	Secret     string `json:"-"`
	SecretFile string `json:"certificate_secret_file,omitempty"`
}

func (id Identity) Kind() IdentityKind {
	switch {
	case id.Thumbprint != "":
		return IdentityStore
	case id.File != "":
		return IdentityFile
	default:
		return IdentityNone
	}
}

func (id Identity) Validate() error {
	if id.Thumbprint != "" && id.File != "" {
		return errIdentityAmbiguous
	}

	switch id.Kind() {
	case IdentityStore:
		return nil
	case IdentityFile:
		if id.Secret == "" && id.SecretFile == "" {
			return errIdentityNoSecret
		}
		return nil
	default:
		return errIdentityEmpty
	}
}

// Key returns the grouping key for a retrieve pass. It covers the full
// variant value, not a single field that may be empty for the other
// variant.
func (id Identity) Key() string {
	switch id.Kind() {
	case IdentityStore:
		return "store\x00" + id.Thumbprint
	case IdentityFile:
		return "file\x00" + id.File + "\x00" + id.Secret + "\x00" + id.SecretFile
	default:
		return "none"
	}
}

// String is safe for logging; it never exposes the secret.
func (id Identity) String() string {
	switch id.Kind() {
	case IdentityStore:
		return fmt.Sprintf("store:%s", id.Thumbprint)
	case IdentityFile:
		return fmt.Sprintf("file:%s", id.File)
	default:
		return "none"
	}
}
