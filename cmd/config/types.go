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

package config

import (
	"github.com/vento-lexops/ventoagent/lexnet"
	"github.com/vento-lexops/ventoagent/scheduler"
)

const (
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultSyncIntervalMinutes = 30
)

// Account is the on-disk account record. Exactly one of the certificate
// variants must be present; Enabled defaults to true when omitted, same
// as the agent has always behaved.
type Account struct {
	Name                    string `json:"name"`
	Enabled                 *bool  `json:"enabled,omitempty"`
	CertificateThumbprint   string `json:"certificate_thumbprint,omitempty"`
	CertificateFile         string `json:"certificate_file,omitempty"`
	CertificatePassword     string `json:"certificate_password,omitempty"`
	CertificatePasswordFile string `json:"certificate_password_file,omitempty"`
}

// Configuration is the agent's persisted configuration plus the CLI
// surface over it. JSON file values override flag defaults.
type Configuration struct {
	ConfigPath string `json:"-"`

	DownloadFolder      string                   `json:"download_folder,omitempty"`
	SyncIntervalMinutes int                      `json:"sync_interval_minutes,omitempty"`
	Headless            *bool                    `json:"headless,omitempty"`
	AutoStart           bool                     `json:"auto_start,omitempty"`
	DailyTimes          []scheduler.ScheduleTime `json:"daily_times,omitempty"`
	Accounts            []Account                `json:"accounts,omitempty"`
	BaseURL             string                   `json:"base_url,omitempty"`
	LogLevel            string                   `json:"log_level,omitempty"`
	LogFormat           string                   `json:"log_format,omitempty"`

	ResolvedAccounts []lexnet.Account `json:"-"`
	ResolvedHeadless bool             `json:"-"`
}
