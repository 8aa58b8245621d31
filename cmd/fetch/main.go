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

package fetch

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vento-lexops/ventoagent/cmd/config"
	"github.com/vento-lexops/ventoagent/lexnet"
	"github.com/vento-lexops/ventoagent/lexnet/client"
	"github.com/vento-lexops/ventoagent/notify"
	"github.com/vento-lexops/ventoagent/orchestrator"
	"github.com/vento-lexops/ventoagent/registry"
	"github.com/vento-lexops/ventoagent/store"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := config.DefaultConfig()
	var all bool
	var ids cli.StringSlice

	flags := cfg.Parameters()
	flags = append(flags,
		&cli.BoolFlag{
			Name:        "all",
			Usage:       "download every pending notification",
			Destination: &all,
		},
		&cli.StringSliceFlag{
			Name:        "id",
			Usage:       "download the notification with this id (repeatable)",
			Destination: &ids,
		},
	)

	app.Commands = append(app.Commands, &cli.Command{
		Name:  "fetch",
		Usage: "Check all accounts, then download selected notifications",
		Flags: flags,
		Before: func(context *cli.Context) error {
			return cfg.Resolve()
		},
		Action: func(context *cli.Context) error {
			return fetch(context, &cfg, all, ids.Value())
		},
	})
	return app
}

func fetch(_ *cli.Context, cfg *config.Configuration, all bool, ids []string) error {
	logLevel, err := log.ParseLevel(cfg.LogLevel)
	if err == nil {
		log.SetLevel(logLevel)
	}

	if !all && len(ids) == 0 {
		return fmt.Errorf("nothing selected: pass --all or at least one --id")
	}

	if err := os.MkdirAll(cfg.DownloadFolder, 0o755); err != nil {
		return err
	}

	accounts := cfg.ResolvedAccounts
	orch := orchestrator.New(&orchestrator.Config{
		Accounts: func() []lexnet.Account { return accounts },
		Factory:  &client.Factory{BaseURL: cfg.BaseURL},
		Store:    store.New(cfg.DownloadFolder),
		Notifier: notify.LogNotifier{},
		Headless: cfg.ResolvedHeadless,
	}, registry.New())

	if _, err := orch.CheckAllAccounts(); err != nil {
		return err
	}

	pending := orch.Pending()

	var selected []lexnet.Notification
	if all {
		selected = pending
	} else {
		want := map[string]struct{}{}
		for _, id := range ids {
			want[id] = struct{}{}
		}

		for _, n := range pending {
			if _, ok := want[n.ID]; ok {
				selected = append(selected, n)
				delete(want, n.ID)
			}
		}

		for id := range want {
			log.WithField("id", id).Warn("fetch_id_not_pending")
		}
	}

	retrieved, err := orch.RetrieveSelected(selected)
	if err != nil {
		return err
	}

	fmt.Printf("Downloaded %d of %d selected notifications to %s\n",
		retrieved, len(selected), cfg.DownloadFolder)
	return nil
}
