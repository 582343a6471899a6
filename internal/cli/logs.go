package cli

import (
	"github.com/babarot/stowage/internal/env"
	"github.com/babarot/stowage/internal/utils/debug"
)

type LogsCommand struct {
	Live bool `short:"f" long:"live" description:"Follow new entries"`

	cli *CLI
}

func (cmd *LogsCommand) Execute(args []string) error {
	c := cmd.cli
	if err := c.setup(false); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return debug.Logs(ctx, c.stdout, env.STOWAGE_LOG_PATH, c.config.Logging.Enabled, cmd.Live)
}
