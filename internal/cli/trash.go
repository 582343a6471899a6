package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/trash"
	"github.com/babarot/stowage/internal/ui"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

type TrashCommand struct {
	List    TrashListCommand    `command:"list" alias:"ls" description:"List trashed items"`
	Restore TrashRestoreCommand `command:"restore" description:"Restore trashed items by id"`
	Purge   TrashPurgeCommand   `command:"purge" description:"Permanently delete trashed items by id"`
	Empty   TrashEmptyCommand   `command:"empty" description:"Permanently delete everything in the trash"`
}

type TrashListCommand struct {
	Type       string `long:"type" description:"Only show this kind" choice:"file" choice:"folder"`
	Glob       string `short:"g" long:"glob" description:"Only show names matching the glob"`
	Regex      string `short:"e" long:"regex" description:"Only show names matching the regular expression"`
	WithinDays int    `short:"d" long:"within-days" description:"Only show items trashed in the last N days"`
	All        bool   `short:"a" long:"all" description:"Ignore the exclude rules from the config"`
	JSON       bool   `long:"json" description:"Print JSON"`

	cli *CLI
}

func (cmd *TrashListCommand) Execute(args []string) error {
	c := cmd.cli
	if err := c.setup(false); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	rt, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts, err := cmd.filterOptions()
	if err != nil {
		return err
	}
	entries := rt.trash.List(opts)
	if cmd.JSON {
		return printJSON(c.stdout, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.stdout, "The trash is empty.")
		return nil
	}
	printEntries(c.stdout, entries, time.Now())
	return nil
}

func (cmd *TrashListCommand) filterOptions() (trash.FilterOptions, error) {
	var opts trash.FilterOptions
	if cmd.Type != "" {
		kind, err := types.ParseItemType(cmd.Type)
		if err != nil {
			return opts, err
		}
		opts.Include.Type = kind
	}
	if cmd.Glob != "" {
		opts.Include.Globs = []string{cmd.Glob}
	}
	if cmd.Regex != "" {
		opts.Include.Patterns = []string{cmd.Regex}
	}
	opts.Include.WithinDays = cmd.WithinDays

	if !cmd.All {
		ex := cmd.cli.config.Trash.Exclude
		opts.Exclude = trash.ExcludeOptions{
			Names:    ex.Names,
			Patterns: ex.Patterns,
			Globs:    ex.Globs,
			MinSize:  ex.Size.Min,
			MaxSize:  ex.Size.Max,
		}
	}
	return opts, opts.Validate()
}

type TrashRestoreCommand struct {
	Args struct {
		IDs []string `positional-arg-name:"id" required:"1"`
	} `positional-args:"yes"`

	cli *CLI
}

func (cmd *TrashRestoreCommand) Execute(args []string) error {
	c := cmd.cli
	ids, err := parseIDs(cmd.Args.IDs)
	if err != nil {
		return err
	}
	if err := c.setup(false); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	rt, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var errs []error
	for _, id := range ids {
		restored, err := rt.trash.Restore(ctx, id)
		if err != nil {
			errs = append(errs, err)
			fmt.Fprintf(c.stderr, "%s %s: %v\n", color.RedString("failed"), id, err)
			continue
		}
		fmt.Fprintf(c.stdout, "%s %s -> %s\n", color.GreenString("restored"), restored.Entry.Name, restored.Path)
	}
	return errors.Join(errs...)
}

type TrashPurgeCommand struct {
	Force bool `short:"f" long:"force" description:"Do not prompt"`
	Args  struct {
		IDs []string `positional-arg-name:"id" required:"1"`
	} `positional-args:"yes"`

	cli *CLI
}

func (cmd *TrashPurgeCommand) Execute(args []string) error {
	c := cmd.cli
	ids, err := parseIDs(cmd.Args.IDs)
	if err != nil {
		return err
	}
	if err := c.setup(false); err != nil {
		return err
	}
	if !cmd.Force && !confirm(fmt.Sprintf("Permanently delete %d item(s)?", len(ids))) {
		fmt.Fprintln(c.stdout, "Purge canceled.")
		return nil
	}
	ctx, stop := signalContext()
	defer stop()
	rt, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var errs []error
	for _, id := range ids {
		if err := rt.trash.Purge(ctx, id); err != nil {
			errs = append(errs, err)
			fmt.Fprintf(c.stderr, "%s %s: %v\n", color.RedString("failed"), id, err)
			continue
		}
		fmt.Fprintf(c.stdout, "%s %s\n", color.YellowString("purged"), id)
	}
	return errors.Join(errs...)
}

type TrashEmptyCommand struct {
	Force bool `short:"f" long:"force" description:"Do not prompt"`

	cli *CLI
}

func (cmd *TrashEmptyCommand) Execute(args []string) error {
	c := cmd.cli
	if err := c.setup(false); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	rt, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	n := rt.idx.Trash.Len()
	if n == 0 {
		fmt.Fprintln(c.stdout, "The trash is already empty.")
		return nil
	}
	if !cmd.Force && !confirm(fmt.Sprintf("Permanently delete all %d item(s) in the trash?", n)) {
		fmt.Fprintln(c.stdout, "Empty canceled.")
		return nil
	}
	return emptyTrash(ctx, c.stdout, rt.trash)
}

func emptyTrash(ctx context.Context, w io.Writer, m *trash.Manager) error {
	report, err := m.Empty(ctx)
	fmt.Fprintf(w, "Purged %d, skipped %d, failed %d.\n", report.Purged, report.Skipped, report.Failed)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return report.Err()
	}
	return nil
}

func parseIDs(args []string) ([]types.ID, error) {
	ids := make([]types.ID, 0, len(args))
	for _, arg := range args {
		id, err := types.ParseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// confirm prompts only on an interactive terminal; otherwise it declines
func confirm(prompt string) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return false
	}
	return ui.Confirm(prompt)
}

func printEntries(w io.Writer, entries []types.TrashEntry, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Type", "Original Path", "Size", "Trashed", "Expires"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.FgHiGreenColor},
		tablewriter.Colors{tablewriter.FgHiGreenColor},
		tablewriter.Colors{tablewriter.FgHiGreenColor},
		tablewriter.Colors{tablewriter.FgHiGreenColor},
		tablewriter.Colors{tablewriter.FgHiGreenColor},
		tablewriter.Colors{tablewriter.FgHiGreenColor},
	)
	for _, e := range entries {
		table.Append([]string{
			e.ID.String(),
			e.Type.String(),
			e.OriginalPath,
			humanize.Bytes(uint64(max(e.Size, 0))),
			humanize.RelTime(e.TrashedAt, now, "ago", "from now"),
			expires(e, now),
		})
	}
	table.Render()
}

func expires(e types.TrashEntry, now time.Time) string {
	if e.DeletionDate.IsZero() {
		return "never"
	}
	days := e.DaysUntilDeletion(now)
	switch days {
	case 0:
		return color.RedString("today")
	case 1:
		return color.YellowString("in 1 day")
	default:
		return fmt.Sprintf("in %d days", days)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
