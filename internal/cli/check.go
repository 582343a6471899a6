package cli

import (
	"fmt"
	"io"

	"github.com/babarot/stowage/internal/trash"
	"github.com/fatih/color"
)

type CheckCommand struct {
	JSON bool `long:"json" description:"Print JSON"`

	cli *CLI
}

func (cmd *CheckCommand) Execute(args []string) error {
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

	report, err := rt.trash.Reconcile(ctx)
	if err != nil {
		return err
	}
	if cmd.JSON {
		return printJSON(c.stdout, report)
	}
	printReconcile(c.stdout, report)
	return nil
}

func printReconcile(w io.Writer, r *trash.ReconcileReport) {
	if r.Clean() {
		fmt.Fprintf(w, "%s %d mappings checked, no divergence.\n", color.GreenString("ok"), r.Checked)
		return
	}
	fmt.Fprintf(w, "%d mappings checked.\n", r.Checked)
	for _, item := range r.Review {
		fmt.Fprintf(w, "%s %s %s (%s)\n", color.YellowString("review"), item.Type, item.Path, item.Reason)
	}
	for _, e := range r.MissingPayloads {
		fmt.Fprintf(w, "%s trash entry %s (%s) has no payload\n", color.RedString("missing"), e.ID, e.OriginalPath)
	}
	for _, id := range r.Orphans {
		fmt.Fprintf(w, "%s payload %s has no trash entry\n", color.YellowString("orphan"), id)
	}
}
