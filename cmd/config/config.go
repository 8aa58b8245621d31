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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/vento-lexops/ventoagent/lexnet"
	"github.com/vento-lexops/ventoagent/scheduler"
)

func DefaultConfig() Configuration {
	return Configuration{
		ConfigPath:          defaultConfigPath(),
		SyncIntervalMinutes: DefaultSyncIntervalMinutes,
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(dir, "VentoLexOps", "config.json")
}

func defaultDownloadFolder() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "VentoLexNet"
	}
	return filepath.Join(home, "VentoLexNet")
}

func (cfg *Configuration) Parameters() []cli.Flag {
	def := DefaultConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to configuration file, or '-' to read from stdin",
			EnvVars:     []string{"VENTOAGENT_CONFIG"},
			Destination: &cfg.ConfigPath,
			Value:       def.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "download-folder",
			Usage:       "root of the notification download tree",
			EnvVars:     []string{"VENTOAGENT_DOWNLOAD_FOLDER"},
			Destination: &cfg.DownloadFolder,
			Value:       def.DownloadFolder,
		},
		&cli.IntFlag{
			Name:        "interval",
			Usage:       "sync interval in minutes (clamped to [5, 1440])",
			EnvVars:     []string{"VENTOAGENT_INTERVAL"},
			Destination: &cfg.SyncIntervalMinutes,
			Value:       def.SyncIntervalMinutes,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "notification source endpoint",
			EnvVars:     []string{"VENTOAGENT_BASE_URL"},
			Destination: &cfg.BaseURL,
			Value:       def.BaseURL,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level",
			EnvVars:     []string{"VENTOAGENT_LOG_LEVEL"},
			Destination: &cfg.LogLevel,
			Value:       def.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "logging format (text/json)",
			EnvVars:     []string{"VENTOAGENT_LOG_FORMAT"},
			Destination: &cfg.LogFormat,
			Value:       def.LogFormat,
		},
	}
}

// Resolve loads the configuration file over the flag-populated struct
// and normalises the result. A missing file is not an error; the agent
// runs on defaults until one is written.
func (cfg *Configuration) Resolve() error {
	var err error
	var raw []byte

	switch cfg.ConfigPath {
	case "-":
		raw, err = io.ReadAll(os.Stdin)
	case "":
		// Defaults only.
	default:
		raw, err = os.ReadFile(cfg.ConfigPath)
		if os.IsNotExist(err) {
			raw, err = nil, nil
		}
	}

	if err != nil {
		return err
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return err
		}
	}

	cfg.SyncIntervalMinutes = scheduler.ClampInterval(cfg.SyncIntervalMinutes)

	if cfg.DownloadFolder == "" {
		cfg.DownloadFolder = defaultDownloadFolder()
	}

	cfg.ResolvedHeadless = true
	if cfg.Headless != nil {
		cfg.ResolvedHeadless = *cfg.Headless
	}

	cfg.ResolvedAccounts = cfg.ResolvedAccounts[:0]
	for i := range cfg.Accounts {
		acct, err := cfg.Accounts[i].Resolve()
		if err != nil {
			return fmt.Errorf("account %q: %w", cfg.Accounts[i].Name, err)
		}
		cfg.ResolvedAccounts = append(cfg.ResolvedAccounts, acct)
	}

	return nil
}

func (a *Account) Resolve() (lexnet.Account, error) {
	id := lexnet.Identity{
		Thumbprint: a.CertificateThumbprint,
		File:       a.CertificateFile,
		Secret:     a.CertificatePassword,
		SecretFile: a.CertificatePasswordFile,
	}

	if err := id.Validate(); err != nil {
		return lexnet.Account{}, err
	}

	enabled := true
	if a.Enabled != nil {
		enabled = *a.Enabled
	}

	return lexnet.Account{
		Name:     a.Name,
		Enabled:  enabled,
		Identity: id,
	}, nil
}

// Save writes the configuration back to its file, creating parent
// directories as needed. The write is atomic.
func (cfg *Configuration) Save() error {
	if cfg.ConfigPath == "" || cfg.ConfigPath == "-" {
		return fmt.Errorf("no configuration path to save to")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.ConfigPath), 0o755); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(cfg.ConfigPath), ".config.json.*")
	if err != nil {
		return err
	}

	_, err = tmp.Write(raw)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), cfg.ConfigPath)
}
