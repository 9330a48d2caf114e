package commands

import (
	"context"

	"git.home.luguber.info/inful/loaderbuild/internal/writer"
)

// AggregateCmd implements the 'aggregate' command.
type AggregateCmd struct {
	Bundle string `arg:"" help:"Bundle name"`
	Kind   string `help:"Which loader data to print" enum:"both,server,client" default:"both"`
}

func (a *AggregateCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	h, err := NewHost(context.Background(), cfg, HostOptions{}, g.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	b, err := h.Bundle(a.Bundle)
	if err != nil {
		return err
	}
	agg := h.Orchestrator.Aggregator()
	var doc any
	switch a.Kind {
	case "server":
		doc = agg.Server(b)
	case "client":
		doc = agg.Client(b)
	default:
		doc = map[string]any{"server": agg.Server(b), "client": agg.Client(b)}
	}
	raw, err := writer.Encode(doc)
	if err != nil {
		return err
	}
	_, err = g.stdout().Write(raw)
	return err
}
