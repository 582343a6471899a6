package cli

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/babarot/stowage/internal/server"
	"github.com/babarot/stowage/internal/trash"
)

type ServeCommand struct {
	Addr string `long:"addr" description:"Listen address, overrides server.addr"`

	cli *CLI
}

func (cmd *ServeCommand) Execute(args []string) error {
	c := cmd.cli
	if err := c.setup(true); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	rt, err := c.openServing(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	maxUpload, err := c.config.Storage.MaxUploadBytes()
	if err != nil {
		return err
	}
	shutdown, readHeader, err := c.config.Server.Timeouts()
	if err != nil {
		return err
	}

	addr := c.config.Server.Addr
	if cmd.Addr != "" {
		addr = cmd.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	var wg sync.WaitGroup
	janitor := trash.NewJanitor(rt.trash, rt.trash.Config().CleanupInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		janitor.Run(ctx)
	}()

	srv := server.New(rt.storage, rt.trash, rt.idx, server.Options{
		CORSOrigins:       c.config.Server.CORSOrigins,
		MaxUploadSize:     maxUpload,
		ShutdownTimeout:   shutdown,
		ReadHeaderTimeout: readHeader,
	})
	err = srv.Serve(ctx, ln)
	stop()
	wg.Wait()
	slog.Info("server stopped")
	return err
}
