package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/soltx/cli/tx"
	"github.com/nspcc-dev/soltx/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "soltx\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a soltx instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "soltx"
	ctl.Version = config.Version
	ctl.Usage = "Send and confirm ledger transactions"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, tx.NewCommands()...)
	return ctl
}
