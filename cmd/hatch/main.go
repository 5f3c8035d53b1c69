package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/simonhull/firebird-suite/hatch/internal/commands"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := commands.NewApp()
	rootCmd := app.RootCmd()

	rootCmd.AddCommand(app.NewCmd())
	rootCmd.AddCommand(app.TemplatesCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		output.Error(err.Error())
		stop()
		os.Exit(commands.ExitCode(err))
	}
}
