package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/nooga/lucore/pkg/config"
	"github.com/nooga/lucore/pkg/demo"
	"github.com/nooga/lucore/pkg/driver"
	"github.com/nooga/lucore/pkg/source"
)

// newReplCmd starts a liner-backed shell over the demo catalog. With
// no lexer/parser in scope, this can't take arbitrary source text —
// it's a dispatcher over the canned ast.Block programs plus a couple
// of session-inspection commands: a read-line, dispatch, print loop
// minus the part that depends on a real tokenizer.
func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell over the demo catalog and session stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepl()
			return nil
		},
	}
}

func runRepl() {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	rt := driver.New(config.Default())
	fmt.Println("lucore debug shell — 'help' for commands, Ctrl-D to quit")

	for {
		input, err := line.Prompt("lucore> ")
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println()
				return
			}
			fmt.Fprintln(os.Stderr, err)
			return
		}
		line.AppendHistory(input)
		cmd := strings.TrimSpace(input)
		dispatch(rt, cmd)
		if cmd == "exit" || cmd == "quit" {
			return
		}
	}
}

func dispatch(rt *driver.Runtime, input string) {
	switch {
	case input == "":
		return
	case input == "help":
		fmt.Println("commands: list | run <name> [bytecode] | stats | help | exit")
	case input == "exit" || input == "quit":
		fmt.Println("goodbye")
		return
	case input == "stats":
		s := rt.Stats()
		fmt.Printf("allocated=%s freed=%s collections=%s cyclesFreed=%s\n",
			humanize.Comma(s.Allocated), humanize.Comma(s.Freed),
			humanize.Comma(s.Collections), humanize.Comma(s.CyclesFreed))
	case input == "list":
		for _, p := range demo.Catalog {
			fmt.Printf("%-10s %s\n", p.Name, p.Description)
		}
	case strings.HasPrefix(input, "run "):
		fields := strings.Fields(input)[1:]
		if len(fields) == 0 {
			fmt.Println("usage: run <name> [bytecode]")
			return
		}
		p, ok := findProgram(fields[0])
		if !ok {
			fmt.Printf("no such demo program %q\n", fields[0])
			return
		}
		showBytecode := len(fields) > 1 && fields[1] == "bytecode"
		rt.SetSource(source.NewSourceFile(p.Name, "", p.Source))
		chunk, cerr := rt.Compile(p.Build())
		if cerr != nil {
			fmt.Println("compile error:", formatLuaError(cerr))
			return
		}
		if showBytecode {
			fmt.Println(chunk.Disassemble())
		}
		results, rerr := rt.Execute(chunk)
		if rerr != nil {
			fmt.Println("runtime error:", formatLuaError(rerr))
			return
		}
		fmt.Printf("=> %s\n", formatResults(results))
	default:
		fmt.Printf("unrecognized command %q (try 'help')\n", input)
	}
}
