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

package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vento-lexops/ventoagent/cmd/check"
	"github.com/vento-lexops/ventoagent/cmd/fetch"
	"github.com/vento-lexops/ventoagent/cmd/openfolder"
	"github.com/vento-lexops/ventoagent/cmd/run"
)

func Main() {
	app := cli.App{
		Name:  "ventoagent",
		Usage: os.Args[0],
		Description: `VentoAgent periodically checks configured LexNET accounts for
pending notifications and downloads the selected ones into a
structured local folder tree.
`,
	}

	run.RegisterCommand(&app)
	check.RegisterCommand(&app)
	fetch.RegisterCommand(&app)
	openfolder.RegisterCommand(&app)

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
