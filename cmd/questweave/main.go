// Questweave runs a dialogue-and-quest hub from Lua game content.
// Usage: questweave [--version] [--config <file>] [--plain] [--script <file>] [--trace] [game_directory]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nathoo/questweave/cli"
	"github.com/nathoo/questweave/config"
	"github.com/nathoo/questweave/engine"
	"github.com/nathoo/questweave/loader"
	"github.com/nathoo/questweave/logging"
	"github.com/nathoo/questweave/progress"
	"github.com/nathoo/questweave/remote"
	"github.com/nathoo/questweave/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: questweave [--version] [--config <file>] [--plain] [--script <file>] [--trace] [game_directory]"

type flags struct {
	configPath string
	gameDir    string
	scriptFile string
	plain      bool
	trace      bool
}

func main() {
	var f flags
	f.configPath = "questweave.yaml"

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("questweave %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			f.plain = true
		case "--trace":
			f.trace = true
		case "--script", "--config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a file path\n", args[i])
				os.Exit(1)
			}
			if args[i] == "--script" {
				f.scriptFile = args[i+1]
			} else {
				f.configPath = args[i+1]
			}
			i++
		case "-h", "--help":
			fmt.Println(usage)
			return
		default:
			if f.gameDir == "" {
				f.gameDir = args[i]
			}
		}
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.gameDir != "" {
		cfg.GameDir = f.gameDir
	}

	log, logCloser := logging.New(cfg.Logging, os.Stderr)
	defer logCloser.Close()

	// Load and compile Lua game content.
	defs, err := loader.Load(cfg.GameDir)
	if err != nil {
		return fmt.Errorf("loading game: %w", err)
	}

	store, err := progress.Open(cfg.ProgressPath)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, err := engine.New(defs, engine.Options{
		Progress:   store,
		HourLength: cfg.HourLength,
		StartHour:  cfg.StartHour,
		Log:        log,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var commands <-chan remote.Command
	if cfg.Remote.Enabled {
		srv := remote.New(log.With("component", "remote"))
		srv.Attach(eng.Bus)
		defer srv.Detach()
		commands = srv.Commands()

		srvCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.ListenAndServe(srvCtx, cfg.Remote.Addr); err != nil {
				log.Error("remote input stopped", "error", err)
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	log.Info("game loaded", "title", defs.Game.Title, "dir", cfg.GameDir,
		"quests", len(defs.Quests), "objects", len(defs.Objects))

	newCLI := func() *cli.CLI {
		fmt.Printf("%s v%s by %s\n\n", defs.Game.Title, defs.Game.Version, defs.Game.Author)
		c := cli.New(eng, defs)
		c.SaveDir = cfg.SaveDir
		c.Trace = f.trace
		c.TickRate = cfg.TickRate
		c.Remote = commands
		return c
	}

	// Script mode: read commands from a file, force plain, echo commands.
	if f.scriptFile != "" {
		script, err := os.Open(f.scriptFile)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer script.Close()
		c := newCLI()
		c.In = script
		c.EchoInput = true
		// Scripts run without wall-clock ticks.
		c.TickRate = 0
		return c.Run(ctx)
	}

	// Use plain CLI if asked to or stdout is not a terminal.
	if f.plain || cfg.UI == "cli" || !isTerminal() {
		return newCLI().Run(ctx)
	}

	err = tui.Run(ctx, eng, defs, tui.Options{
		SaveDir:  cfg.SaveDir,
		Trace:    f.trace,
		TickRate: cfg.TickRate,
		Remote:   commands,
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
