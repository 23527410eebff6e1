package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Optional TOML config file; environment variables override it." type:"path" default:"intent.toml"`
	Debug   bool   `help:"Log at debug level." env:"DEBUG"`

	Run    RunCmd    `cmd:"" help:"Run the Telegram bot." default:"1"`
	Habits HabitsCmd `cmd:"" help:"Print stored habits and their reminders."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("intentbot"),
		kong.Description("Habit reminders over Telegram"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	err := ctx.Run(&appContext{configPath: CLI.Config, debug: CLI.Debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
