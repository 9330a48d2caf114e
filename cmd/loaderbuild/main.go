package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/loaderbuild/cmd/loaderbuild/commands"
	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/version"
)

func main() {
	cli := &commands.CLI{}
	globals := &commands.Global{}
	ctx := kong.Parse(cli,
		kong.Name("loaderbuild"),
		kong.Description("Incremental loader data and compilation for application bundles"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(globals),
	)
	if err := ctx.Run(cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, globals.Logger).HandleError(err)
	}
}
