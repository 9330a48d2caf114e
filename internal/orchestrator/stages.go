package orchestrator

import (
	"context"

	"git.home.luguber.info/inful/loaderbuild/internal/enumerate"
	"git.home.luguber.info/inful/loaderbuild/internal/filter"
	"git.home.luguber.info/inful/loaderbuild/internal/writer"
)

// cycle is the mutable state of one BundleUpdated call.
type cycle struct {
	event  Event
	collab Collaborators
	out    *Outcome
	noop   bool
}

type stage struct {
	state State
	run   func(ctx context.Context, c *cycle) error
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{StateFiltering, o.filterStage},
		{StateResolving, o.resolveStage},
		{StateServerAggregate, o.serverAggregateStage},
		{StateServerAttach, o.serverAttachStage},
		{StateClientAggregate, o.clientAggregateStage},
		{StateClientAttach, o.clientAttachStage},
		{StateCompiling, o.compileStage},
	}
}

func (o *Orchestrator) filterStage(_ context.Context, c *cycle) error {
	c.out.Changed = filter.Apply(c.event.Bundle, c.event.Files, o.predicate)
	return nil
}

func (o *Orchestrator) resolveStage(ctx context.Context, c *cycle) error {
	files, err := c.collab.Enumerator.GetBundleFiles(ctx, c.event.Bundle.Name, enumerate.BuildFiles)
	if err != nil {
		return err
	}
	res := o.resolver.Resolve(c.event.Bundle, c.out.Changed, files)
	c.out.Targets = res.Targets
	c.out.Builds = res.Builds
	c.noop = res.Empty()
	return nil
}

func (o *Orchestrator) serverAggregateStage(_ context.Context, c *cycle) error {
	c.out.Server = o.aggregator.Server(c.event.Bundle)
	return nil
}

func (o *Orchestrator) serverAttachStage(_ context.Context, c *cycle) error {
	writer.AttachServer(c.event.Bundle, c.out.Server)
	return nil
}

func (o *Orchestrator) clientAggregateStage(_ context.Context, c *cycle) error {
	c.out.Client = o.aggregator.Client(c.event.Bundle)
	return nil
}

func (o *Orchestrator) clientAttachStage(ctx context.Context, c *cycle) error {
	return writer.AttachClient(ctx, c.collab.Writer, c.event.Bundle, o.clientPath(c.event.Bundle), c.out.Client)
}

func (o *Orchestrator) compileStage(ctx context.Context, c *cycle) error {
	return o.driver.CompileWith(ctx, c.collab.Compiler, c.event.Bundle, c.out.Targets)
}
