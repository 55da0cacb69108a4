package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

// Globals are flags shared by every subcommand.
type Globals struct {
	Config   string `short:"c" default:"shellgame.hcl" help:"Path to HCL configuration file"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
}

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Play     PlayCmd          `cmd:"" default:"1" help:"Play in the terminal"`
	Serve    ServeCmd         `cmd:"" help:"Serve games over WebSocket"`
	Simulate SimulateCmd      `cmd:"" help:"Play many headless games with a guessing strategy"`
	Best     BestCmd          `cmd:"" help:"Show or reset the persisted best score"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("shellgame"),
		kong.Description("Find the ball under the shuffling boxes"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
