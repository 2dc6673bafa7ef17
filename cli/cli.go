// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for the questweave hub.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nathoo/questweave/engine"
	"github.com/nathoo/questweave/engine/state"
	"github.com/nathoo/questweave/remote"
	"github.com/nathoo/questweave/types"
)

// CLI handles terminal interaction with the player. It is also the host
// loop: player lines, clock ticks and remote commands are all applied to
// the engine from Run's goroutine.
type CLI struct {
	Engine    *engine.Engine
	Defs      *state.Defs
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	Trace     bool
	EchoInput bool                  // echo each input line after the prompt (for script playback)
	TickRate  time.Duration         // wall-clock tick interval; 0 disables ticking
	Remote    <-chan remote.Command // optional remote input source
	lastCmd   string                // for "again"/"g" repeat
}

// New creates a CLI wired to the given engine.
func New(eng *engine.Engine, defs *state.Defs) *CLI {
	home, _ := os.UserHomeDir()
	return &CLI{
		Engine:  eng,
		Defs:    defs,
		In:      os.Stdin,
		Out:     os.Stdout,
		SaveDir: filepath.Join(home, ".questweave", "saves"),
	}
}

// Run shows the intro and the hub, then loops until input ends, /quit is
// entered or ctx is cancelled.
func (c *CLI) Run(ctx context.Context) error {
	if c.Defs.Game.Intro != "" {
		c.printLine(c.Defs.Game.Intro)
		c.printLine("")
	}
	c.printResult(c.Engine.Step("look"))

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	var tick <-chan time.Time
	if c.TickRate > 0 {
		ticker := time.NewTicker(c.TickRate)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if c.handleLine(line) {
				return nil
			}
			c.prompt()

		case <-tick:
			if r := c.Engine.Tick(c.TickRate); len(r.Output) > 0 {
				c.printLine("")
				c.printResult(r)
				c.prompt()
			}

		case cmd := <-c.Remote:
			remote.Apply(cmd, c.Engine)
			c.printLine("")
			c.printResult(c.Engine.Flush())
			c.prompt()
		}
	}
}

// handleLine processes one line of player input. Returns true if the game
// should exit.
func (c *CLI) handleLine(line string) bool {
	input := strings.TrimSpace(line)
	// Skip comment lines (for script files).
	if strings.HasPrefix(input, "#") {
		return false
	}
	// A bare Enter advances a conversation and is ignored elsewhere.
	if input == "" && !c.Engine.Dialogue.Playing() {
		return false
	}
	if c.EchoInput {
		c.printLine(input)
	}

	// Meta-commands start with '/'.
	if strings.HasPrefix(input, "/") {
		return c.handleMeta(input)
	}

	// "again" / "g" repeats the last game command.
	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		if c.lastCmd == "" {
			c.printLine("Nothing to repeat.")
			return false
		}
		input = c.lastCmd
	} else if input != "" {
		c.lastCmd = input
	}

	result := c.Engine.Step(input)
	c.printResult(result)
	if c.Trace {
		c.printTrace(result)
	}
	return false
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (c *CLI) handleMeta(input string) bool {
	meta := Meta{Engine: c.Engine, SaveDir: c.SaveDir, Trace: c.Trace}
	system, output, quit := meta.Run(input)
	c.Trace = meta.Trace
	for _, line := range system {
		c.printSystem(line)
	}
	for _, line := range output {
		c.printLine(line)
	}
	return quit
}

func (c *CLI) printTrace(result types.Result) {
	for _, t := range result.Trace {
		c.printSystem("trace " + t)
	}
}

func (c *CLI) printResult(result types.Result) {
	for _, line := range ResultLines(result) {
		c.printLine(line)
	}
}

func (c *CLI) prompt() {
	c.print("> ")
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
