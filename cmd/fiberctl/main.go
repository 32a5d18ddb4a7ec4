/*
Fiberctl compiles a protocol document and runs it locally, without a
bridge server: useful for quick iteration on a document, or for running
a protocol headless on a machine that hosts its own devices.

Usage:

	fiberctl [flags] FILE

Once the document compiles, fiberctl starts the run immediately and
prints each ProgramExecEvent as a JSON line to stdout as it arrives. If
stdin is a tty, an interactive prompt also accepts "PAUSE", "RESUME",
and "HALT" commands (case-insensitive) until the run terminates or
"QUIT" is entered.

The flags are:

	-v, --version
		Give fiberctl's version and exit.

	-d, --direct
		Force reading commands directly from stdin instead of using
		GNU readline, even when launched in a tty.

	-c, --command COMMANDS
		Immediately run the given command(s) once the run starts. Can
		be multiple commands separated by the ";" character.
*/
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/draft"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/node"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/scheduler"
	"github.com/dekarrin/fiberhost/internal/units/devices"
	"github.com/dekarrin/fiberhost/internal/units/metadata"
	"github.com/dekarrin/fiberhost/internal/units/record"
	"github.com/dekarrin/fiberhost/internal/units/shorthand"
	"github.com/dekarrin/fiberhost/internal/units/timer"
	"github.com/dekarrin/fiberhost/internal/version"
)

const (
	ExitSuccess = iota
	ExitCompileError
	ExitInitError
)

var (
	returnCode   = ExitSuccess
	flagVersion  = pflag.BoolP("version", "v", false, "Give fiberctl's version and exit.")
	forceDirect  = pflag.BoolP("direct", "d", false, "Force reading commands directly from stdin.")
	startCommand = pflag.StringP("command", "c", "", "Run the given command(s) immediately once the run starts.")
)

// nopSink implements record.Sink by discarding every row; fiberctl has
// no audit database of its own (that is the bridge's job).
type nopSink struct{}

func (nopSink) WriteRow(ctx context.Context, name string, row map[string]node.Value) error {
	return nil
}

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panic(fmt.Sprintf("unrecoverable panic occurred: %v", panicErr))
		}
		os.Exit(returnCode)
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s\n", version.Current)
		return
	}

	args := pflag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: fiberctl [flags] FILE\nDo -h for help.\n")
		returnCode = ExitInitError
		return
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}

	tree := node.NewInMemoryTree()
	parser, err := fiber.NewFiberParser([]fiber.Parser{
		metadata.NewParser(),
		timer.NewParser(),
		devices.NewParser(tree, claim.NewRegistry()),
		record.NewParser(tree, nopSink{}),
		shorthand.NewParser(),
		fiber.NewStateParser(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not compose parser namespaces: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}

	d := draft.Draft{
		ID:              uuid.New(),
		Documents:       []draft.Document{{ID: "main", Path: args[0], Source: string(source)}},
		EntryDocumentID: "main",
	}

	compilation := draft.Compile(d, parser, fiberexpr.NewEnv("global"))
	for _, diagErr := range compilation.Analysis.Errors {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", diagErr.Error())
	}
	for _, warn := range compilation.Analysis.Warnings {
		fmt.Fprintf(os.Stderr, "WARN: %s\n", warn.Error())
	}
	if !compilation.Valid {
		returnCode = ExitCompileError
		return
	}

	run := scheduler.Start(context.Background(), uuid.New(), d.ID, compilation.Protocol, nil)
	sub := run.Subscribe()

	done := make(chan struct{})
	go printEvents(sub, done)

	var startCommands []string
	if *startCommand != "" {
		startCommands = strings.Split(*startCommand, ";")
	}
	for _, cmd := range startCommands {
		applyCommand(run, cmd)
	}

	runPrompt(run, done)
}

func printEvents(sub <-chan runtime.ProgramExecEvent, done chan<- struct{}) {
	for ev := range sub {
		errMsgs := make([]string, len(ev.Errors))
		for i, e := range ev.Errors {
			errMsgs[i] = e.Error()
		}
		line, err := json.Marshal(map[string]interface{}{
			"location":         ev.Location,
			"errors":           errMsgs,
			"stopped":          ev.Stopped,
			"terminated":       ev.Terminated,
			"state_terminated": ev.StateTerminated,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: could not marshal event: %s\n", err.Error())
			continue
		}
		fmt.Println(string(line))
	}
	close(done)
}

func runPrompt(run *scheduler.Run, done <-chan struct{}) {
	if *forceDirect || !isTerminal() {
		readDirect(run, done)
		return
	}

	rl, err := readline.NewEx(&readline.Config{Prompt: "fiberctl> "})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not start readline: %s, falling back to direct input\n", err.Error())
		readDirect(run, done)
		return
	}
	defer rl.Close()

	for {
		select {
		case <-done:
			return
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF {
				return
			}
			continue
		}
		if !handlePromptLine(run, line) {
			return
		}
	}
}

func readDirect(run *scheduler.Run, done <-chan struct{}) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		r := bufio.NewReader(os.Stdin)
		for {
			line, err := r.ReadString('\n')
			if err != nil && line == "" {
				return
			}
			lines <- line
		}
	}()

	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handlePromptLine(run, line) {
				return
			}
		}
	}
}

// handlePromptLine applies one interactive command, returning false
// once "QUIT" is entered.
func handlePromptLine(run *scheduler.Run, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if strings.EqualFold(line, "quit") {
		run.Stop()
		return false
	}
	applyCommand(run, line)
	return true
}

func applyCommand(run *scheduler.Run, cmd string) {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "pause":
		if err := run.Pause(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: pause rejected: %s\n", err.Error())
		}
	case "resume":
		if err := run.Resume(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: resume rejected: %s\n", err.Error())
		}
	case "halt":
		if err := run.Halt(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: halt rejected: %s\n", err.Error())
		}
	case "":
	default:
		fmt.Fprintf(os.Stderr, "unrecognized command: %q\n", cmd)
	}
}

func isTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
