package main

import (
	"github.com/alecthomas/kong"

	"github.com/tessworth/routinely/cmd/cli"
)

var app struct {
	Run  cli.RunCmd  `cmd:"" help:"Execute a routine."`
	Lint cli.LintCmd `cmd:"" help:"Validate a routine without executing it."`
}

func main() {
	ctx := kong.Parse(&app,
		kong.Name("routinely"),
		kong.Description("Declarative browser and network routine runner."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
