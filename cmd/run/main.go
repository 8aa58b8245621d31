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

package run

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vento-lexops/ventoagent/cmd/config"
	"github.com/vento-lexops/ventoagent/lexnet"
	"github.com/vento-lexops/ventoagent/lexnet/client"
	"github.com/vento-lexops/ventoagent/notify"
	"github.com/vento-lexops/ventoagent/orchestrator"
	"github.com/vento-lexops/ventoagent/registry"
	"github.com/vento-lexops/ventoagent/scheduler"
	"github.com/vento-lexops/ventoagent/store"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := config.DefaultConfig()
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "run",
		Usage: "Run the agent",
		Flags: cfg.Parameters(),
		Before: func(context *cli.Context) error {
			return cfg.Resolve()
		},
		Action: func(context *cli.Context) error {
			return run(context, &cfg)
		},
	})
	return app
}

type schedulerHandle interface {
	Start()
	Stop()
}

const lockFileName = ".ventoagent.lock"

// acquireLock takes the single-instance lock under the download tree.
// Only one agent may own a download tree at a time.
func acquireLock(folder string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(folder, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("another agent instance already owns %s", folder)
	}
	return lock, nil
}

// accountSource hands the orchestrator the account set current at the
// start of each pass, so a configuration reload takes effect without a
// restart.
type accountSource struct {
	mu       sync.Mutex
	accounts []lexnet.Account
}

func (s *accountSource) get() []lexnet.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts
}

func (s *accountSource) set(accounts []lexnet.Account) {
	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()
}

func run(_ *cli.Context, cfg *config.Configuration) error {
	logLevel, err := log.ParseLevel(cfg.LogLevel)
	if err == nil {
		log.SetLevel(logLevel)
	}

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	log.WithFields(log.Fields{
		"config":           cfg.ConfigPath,
		"download_folder":  cfg.DownloadFolder,
		"interval_minutes": cfg.SyncIntervalMinutes,
		"daily_times":      len(cfg.DailyTimes),
		"accounts":         len(cfg.ResolvedAccounts),
		"headless":         cfg.ResolvedHeadless,
		"log_level":        cfg.LogLevel,
		"log_format":       cfg.LogFormat,
	}).Info("starting")

	if len(cfg.ResolvedAccounts) == 0 {
		log.Warn("no_accounts_configured")
	}

	if cfg.AutoStart {
		// Autostart registration is an installer concern; the agent
		// itself only acknowledges the setting.
		log.Info("auto_start_ignored")
	}

	if err := os.MkdirAll(cfg.DownloadFolder, 0o755); err != nil {
		return err
	}

	lock, err := acquireLock(cfg.DownloadFolder)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	accounts := &accountSource{accounts: cfg.ResolvedAccounts}
	orch := orchestrator.New(&orchestrator.Config{
		Accounts: accounts.get,
		Factory:  &client.Factory{BaseURL: cfg.BaseURL},
		Store:    store.New(cfg.DownloadFolder),
		Notifier: notify.LogNotifier{},
		Headless: cfg.ResolvedHeadless,
	}, registry.New())

	var sched schedulerHandle
	if len(cfg.DailyTimes) > 0 {
		sched = scheduler.NewDailyScheduler(cfg.DailyTimes, orch.ScheduledCheck)
	} else {
		sched = scheduler.NewIntervalScheduler(cfg.SyncIntervalMinutes, orch.ScheduledCheck)
	}

	sched.Start()
	defer sched.Stop()

	// First check right away, same as the tray agent always did.
	go orch.ScheduledCheck()

	sigchan := make(chan os.Signal, 10)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sigcount := 0
	for {
		sig := <-sigchan

		if sig == syscall.SIGHUP {
			if err := cfg.Resolve(); err != nil {
				log.WithError(err).Warn("config_reload_failed")
			} else {
				accounts.set(cfg.ResolvedAccounts)
				log.WithField("accounts", len(cfg.ResolvedAccounts)).Info("config_reloaded")
			}

			log.Info("received_hup_checking_now")
			go orch.ScheduledCheck()
			continue
		}

		log.WithFields(log.Fields{"signal": sig, "count": sigcount}).Trace("caught_signal")

		sigcount += 1
		if sigcount > 1 {
			log.WithFields(log.Fields{"signal": sig}).Warn("received_interrupt_force_exit")
			os.Exit(1)
		}
		log.WithFields(log.Fields{"signal": sig}).Info("received_interrupt")

		sched.Stop()
		log.Info("agent_terminated")
		return nil
	}
}
