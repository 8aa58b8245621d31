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

package check

import (
	"fmt"
	"os"
	"text/tabwriter"

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
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "check",
		Usage: "Check all accounts and list pending notifications without downloading",
		Flags: cfg.Parameters(),
		Before: func(context *cli.Context) error {
			return cfg.Resolve()
		},
		Action: func(context *cli.Context) error {
			return check(context, &cfg)
		},
	})
	return app
}

func check(_ *cli.Context, cfg *config.Configuration) error {
	logLevel, err := log.ParseLevel(cfg.LogLevel)
	if err == nil {
		log.SetLevel(logLevel)
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
	if len(pending) == 0 {
		fmt.Println("No pending notifications.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRECEIVED\tCOURT\tPROCEDURE\tTYPE\tURGENT\tACCOUNT")
	for _, n := range pending {
		urgent := ""
		if n.Urgent {
			urgent = "URGENT"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.ReceivedAt.Format("2006-01-02 15:04"), n.Court,
			n.Procedure, n.Type, urgent, n.AccountName)
	}
	return w.Flush()
}
