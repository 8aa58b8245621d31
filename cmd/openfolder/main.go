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

package openfolder

import (
	"os"

	"github.com/skratchdot/open-golang/open"
	"github.com/urfave/cli/v2"

	"github.com/vento-lexops/ventoagent/cmd/config"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := config.DefaultConfig()
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "open-folder",
		Usage: "Open the notification download folder",
		Flags: cfg.Parameters(),
		Before: func(context *cli.Context) error {
			return cfg.Resolve()
		},
		Action: func(context *cli.Context) error {
			if err := os.MkdirAll(cfg.DownloadFolder, 0o755); err != nil {
				return err
			}
			return open.Start(cfg.DownloadFolder)
		},
	})
	return app
}
