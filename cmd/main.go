package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"vmbytecode/internal/logger"
	"vmbytecode/internal/runner"
	"vmbytecode/pkg/color"
	"vmbytecode/pkg/programs"
)

// Main entry point for the stack machine.
func main() {
	options := runner.Runner{}

	flag.BoolVar(&options.Help, "h", false, "Show help")
	flag.BoolVar(&options.Verbose, "v", false, "Verbose mode")
	flag.BoolVar(&options.NoColor, "n", false, "No color")
	flag.BoolVar(&options.Disassemble, "d", false, "Print disassembly before running")
	flag.BoolVar(&options.Trace, "t", false, "Trace every instruction (needs -v)")
	flag.BoolVar(&options.DumpStack, "s", false, "Dump the residual stack after the run")
	flag.BoolVar(&options.NoRun, "x", false, "Do not execute (combine with -d or -o)")
	flag.StringVar(&options.ConfigFile, "c", "", "Config file (default ./stackvm.toml if present)")
	flag.IntVar(&options.MaxSteps, "m", 0, "Maximum instructions to execute (0 = unlimited)")
	flag.IntVar(&options.StackCapacity, "k", 0, "Operand stack capacity (0 = from config)")
	flag.StringVar(&options.Program, "p", "", fmt.Sprintf("Built-in program (%s)", strings.Join(programs.Names(), ", ")))
	flag.Int64Var(&options.ProgramArg, "a", 6, "Argument for the built-in program (add prints arg+arg)")
	flag.StringVar(&options.OutputFile, "o", "", "Write the program image to this file (.yaml or .cbor)")

	flag.Parse()
	args := flag.Args()

	logger.Init(options.Verbose, options.NoColor)
	if options.Help {
		fmt.Printf("Usage: %s [options] [image]\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}

	if options.NoColor {
		color.EnableColor(false)
	}

	if len(args) == 0 && options.Program == "" {
		log.Fatal("No input file provided", "help", fmt.Sprintf("%s -h", os.Args[0]))
	}

	if len(args) > 0 {
		options.SourceFile = args[0]
	}

	if _, err := options.Run(); err != nil {
		fmt.Fprintln(os.Stderr, color.Error(err.Error()))
		os.Exit(1)
	}
}
