// Command aquamind classifies water samples as potable or not.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	g := &globals{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	flag.StringVar(&g.configPath, "config", os.Getenv("AQUAMIND_CONFIG"), "path to the YAML configuration file")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&classifyCmd{g: g}, "classify")
	subcommands.Register(&batchCmd{g: g}, "classify")
	subcommands.Register(&inspectCmd{g: g}, "model")
	subcommands.Register(&importModelCmd{g: g}, "model")
	subcommands.Register(&serveCmd{g: g}, "service")
	subcommands.Register(&botCmd{g: g}, "service")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := subcommands.Execute(ctx)
	stop()
	os.Exit(int(status))
}
