// Command lucore is a debugging aid, not the embedding surface: it
// compiles and runs the hand-built ast.Block demonstrations in
// pkg/demo, printing disassembled bytecode and the resulting value
// vector. Built on github.com/spf13/cobra.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nooga/lucore/pkg/config"
	"github.com/nooga/lucore/pkg/demo"
	"github.com/nooga/lucore/pkg/driver"
	errs "github.com/nooga/lucore/pkg/errors"
	"github.com/nooga/lucore/pkg/source"
	"github.com/nooga/lucore/pkg/value"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lucore",
		Short: "Debugging CLI for the lucore compiler/VM core",
	}
	root.AddCommand(newListCmd(), newRunCmd(), newReplCmd())
	return root
}

func findProgram(name string) (demo.Program, bool) {
	for _, p := range demo.Catalog {
		if p.Name == name {
			return p, true
		}
	}
	return demo.Program{}, false
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in demonstration programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range demo.Catalog {
				fmt.Printf("%-10s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var showBytecode bool
	c := &cobra.Command{
		Use:   "run <program>",
		Short: "Compile, optionally disassemble, and execute one demo program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := findProgram(args[0])
			if !ok {
				return fmt.Errorf("no such demo program %q (see 'lucore list')", args[0])
			}
			return runProgram(p, showBytecode)
		},
	}
	c.Flags().BoolVar(&showBytecode, "bytecode", false, "print disassembled bytecode before executing")
	return c
}

func runProgram(p demo.Program, showBytecode bool) error {
	rt := driver.New(config.Default())
	rt.SetSource(source.NewSourceFile(p.Name, "", p.Source))
	chunk, cerr := rt.Compile(p.Build())
	if cerr != nil {
		return fmt.Errorf("compile error: %s", formatLuaError(cerr))
	}
	if showBytecode {
		fmt.Println(chunk.Disassemble())
	}
	results, rerr := rt.Execute(chunk)
	if rerr != nil {
		return fmt.Errorf("runtime error: %s", formatLuaError(rerr))
	}
	fmt.Printf("=> %s\n", formatResults(results))
	return nil
}

// formatLuaError appends the offending source line to err's own
// message when its Position carries a SourceFile with a valid Line —
// true today only once an embedder (or this CLI) has called
// Runtime.SetSource, since nothing in pkg/compiler or pkg/vm ever
// produces a non-zero Position on its own.
func formatLuaError(err errs.LuaError) string {
	pos := err.Pos()
	if pos.Source == nil || pos.Line < 1 {
		return err.Error()
	}
	lines := pos.Source.Lines()
	if pos.Line > len(lines) {
		return err.Error()
	}
	return fmt.Sprintf("%s\n    %s:%d: %s", err.Error(), pos.Source.DisplayPath(), pos.Line, lines[pos.Line-1])
}

func formatResults(vs []value.Value) string {
	if len(vs) == 0 {
		return "(no results)"
	}
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ", "
		}
		out += value.Inspect(v)
	}
	return out
}
