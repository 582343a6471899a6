package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/nxadm/tail"
)

// Logs prints the log file at path, or follows new entries when live is set
func Logs(ctx context.Context, w io.Writer, path string, enabled, live bool) error {
	if live {
		return tailLiveLogs(ctx, w, path, enabled)
	}
	return showExistingLogs(w, path, enabled)
}

// tailLiveLogs follows log entries in real-time until ctx is done
func tailLiveLogs(ctx context.Context, w io.Writer, path string, enabled bool) error {
	if !enabled {
		return fmt.Errorf("logging is not enabled in config: enable logging in config for live debugging")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("log file does not exist: start the server with logging enabled")
	}

	shouldFollow := isatty.IsTerminal(os.Stdout.Fd())
	t, err := tail.TailFile(path, tail.Config{
		ReOpen: shouldFollow,
		Follow: shouldFollow,
		Poll:   true,
		Logger: tail.DiscardingLogger,
		Location: &tail.SeekInfo{
			Offset: 0,
			Whence: io.SeekEnd,
		},
	})
	if err != nil {
		return err
	}
	defer t.Cleanup()
	slog.Debug("live tail started", "path", path)

	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			fmt.Fprintln(w, line.Text)
		}
	}
}

// showExistingLogs displays the current content of the log file
func showExistingLogs(w io.Writer, path string, enabled bool) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if !enabled {
			return fmt.Errorf("logging is not enabled in config: enable logging to create log files")
		}
		return fmt.Errorf("no log file exists yet: start the server first")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fmt.Fprintln(w, scanner.Text())
	}
	return scanner.Err()
}
