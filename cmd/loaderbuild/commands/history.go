package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/loaderbuild/internal/eventstore"
	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Bundle string `arg:"" optional:"" help:"Bundle name (all configured bundles when omitted)"`
	Limit  int    `short:"n" help:"Maximum number of cycles per bundle" default:"20"`
	JSON   bool   `name:"json" help:"Print the history as JSON"`
}

func (hc *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if cfg.Journal.Path == "" {
		return errors.ConfigError("journal.path is not configured").Build()
	}
	bundles := []string{hc.Bundle}
	if hc.Bundle == "" {
		bundles = bundles[:0]
		for _, b := range cfg.Bundles {
			bundles = append(bundles, b.Name)
		}
	} else if _, ok := cfg.Bundle(hc.Bundle); !ok {
		return errors.NotFoundError("bundle not configured").WithContext("bundle", hc.Bundle).Build()
	}

	store, err := eventstore.NewSQLiteStore(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cycles, err := LoadHistory(context.Background(), store, bundles, hc.Limit)
	if err != nil {
		return err
	}
	if hc.JSON {
		enc := json.NewEncoder(g.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cycles)
	}
	return printHistory(g, cycles)
}

// LoadHistory rebuilds the newest limit cycles of each bundle from store,
// newest first.
func LoadHistory(ctx context.Context, store eventstore.Store, bundles []string, limit int) ([]eventstore.CycleSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	proj := eventstore.NewHistoryProjection(store, limit*max(len(bundles), 1))
	var out []eventstore.CycleSummary
	for _, b := range bundles {
		// Two events per completed cycle.
		events, err := store.GetByBundle(ctx, b, 2*limit)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			proj.Apply(ev)
		}
		hist := proj.History(b)
		if len(hist) > limit {
			hist = hist[:limit]
		}
		out = append(out, hist...)
	}
	return out, nil
}

func printHistory(g *Global, cycles []eventstore.CycleSummary) error {
	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tBUNDLE\tCYCLE\tSOURCE\tSTATUS\tDURATION\tTARGETS\tERROR")
	for _, c := range cycles {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			c.StartedAt.Local().Format(time.DateTime),
			c.Bundle,
			c.CycleID,
			c.Source,
			c.Status,
			c.Duration.Round(time.Millisecond),
			len(c.Targets),
			strings.TrimSpace(strings.Join([]string{c.FailedStage, c.Error}, " ")),
		)
	}
	return tw.Flush()
}
