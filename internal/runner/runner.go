package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"vmbytecode/internal/config"
	"vmbytecode/pkg/color"
	"vmbytecode/pkg/image"
	"vmbytecode/pkg/programs"
	"vmbytecode/pkg/vm"
)

type Runner struct {
	Help          bool      // Show help message
	Verbose       bool      // Enable verbose output
	NoColor       bool      // Disable colored output
	Disassemble   bool      // Print the program listing before running
	Trace         bool      // Log every dispatched instruction at debug level
	DumpStack     bool      // Print the residual operand stack after the run
	NoRun         bool      // Load (and optionally convert or list) without executing
	ConfigFile    string    // Path to stackvm.toml (empty = look in working directory)
	MaxSteps      int       // Step budget override (0 = use config)
	StackCapacity int       // Stack capacity override (0 = use config)
	Program       string    // Built-in program name (e.g., "fib")
	ProgramArg    int64     // Argument for the built-in program
	SourceFile    string    // Path to the program image
	OutputFile    string    // Path to write the loaded image to (format by extension)
	Out           io.Writer // Program output and listings (default os.Stdout)
}

// Result is what a run leaves behind for the host
type Result struct {
	ID    uuid.UUID
	Image image.Image
	State vm.State
	Fault *vm.Fault
	Stack []int64
	Steps int
}

// Run loads the configuration and program, then lists, converts and executes it as the options ask.
func (opts *Runner) Run() (*Result, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("configuration failed: %w", err)
	}
	if cfg.Path != "" {
		log.Info("Loaded configuration", "file", cfg.Path)
	}
	if err := opts.apply(cfg); err != nil {
		return nil, fmt.Errorf("configuration failed: %w", err)
	}

	log.Debug("Output settings", "color", color.IsColorEnabled(), "trace", cfg.Output.Trace, "dump_stack", cfg.Output.DumpStack)

	img, err := opts.loadImage()
	if err != nil {
		return nil, err
	}

	if cfg.Machine.Locals > 0 {
		img.Locals = cfg.Machine.Locals
	}

	if opts.OutputFile != "" {
		if err := image.Save(opts.OutputFile, img); err != nil {
			return nil, fmt.Errorf("writing image failed: %w", err)
		}
		log.Info("Wrote image", "file", opts.OutputFile, "format", image.FormatFor(opts.OutputFile))
	}

	if opts.Disassemble {
		if opts.Verbose {
			fmt.Fprintln(out, color.GreenText("=== Disassembly ==="))
		}
		for _, line := range strings.Split(strings.TrimRight(img.Disassemble(), "\n"), "\n") {
			fmt.Fprintln(out, color.Listing(line))
		}
	}

	res := &Result{ID: uuid.New(), Image: img}
	if opts.NoRun {
		return res, nil
	}

	logger := log.With("run", res.ID.String(), "program", img.Name)

	machineOpts := append(cfg.MachineOptions(), vm.WithWriter(out))
	if cfg.Output.Trace {
		machineOpts = append(machineOpts, vm.WithTracer(func(ev vm.TraceEvent) {
			logger.Debug("step", "n", ev.Step, "pc", ev.PC, "op", ev.Op, "args", ev.Operands, "sp", ev.SP, "fp", ev.FP, "depth", ev.Depth)
		}))
	}

	m := img.NewMachine(machineOpts...)

	logger.Info("Running program", "entry", img.Entry, "slots", len(img.Code), "locals", img.Locals, "stack", cfg.Machine.StackCapacity)
	if opts.Verbose {
		fmt.Fprintln(out, color.GreenText("=== Program Output ==="))
	}

	runErr := m.Run()

	res.State = m.State()
	res.Fault = m.Fault()
	res.Stack = m.Stack()
	res.Steps = m.Steps()

	if cfg.Output.DumpStack {
		dumpStack(out, res.Stack)
	}

	if runErr != nil {
		logger.Error("Program faulted", "kind", vm.KindOf(runErr), "steps", res.Steps, "error", runErr)
		return res, fmt.Errorf("execution failed: %w", runErr)
	}

	logger.Info("Program halted", "steps", res.Steps, "stack", len(res.Stack))

	return res, nil
}

// apply folds command-line overrides into the loaded configuration and checks the result
func (opts *Runner) apply(cfg *config.Config) error {
	if opts.StackCapacity > 0 {
		cfg.Machine.StackCapacity = opts.StackCapacity
	}
	if opts.MaxSteps > 0 {
		cfg.Machine.MaxSteps = opts.MaxSteps
	}

	cfg.Output.Trace = cfg.Output.Trace || opts.Trace
	cfg.Output.DumpStack = cfg.Output.DumpStack || opts.DumpStack

	color.EnableColor(!opts.NoColor && cfg.Output.Color && color.Detect())

	return cfg.Validate()
}

// loadImage picks the built-in program or reads the source file
func (opts *Runner) loadImage() (image.Image, error) {
	switch {
	case opts.Program != "" && opts.SourceFile != "":
		return image.Image{}, errors.New("give either a built-in program or an image file, not both")

	case opts.Program != "":
		img, err := programs.ByName(opts.Program, opts.ProgramArg)
		if err != nil {
			return image.Image{}, err
		}
		log.Info("Using built-in program", "program", opts.Program, "arg", opts.ProgramArg)
		return img, nil

	case opts.SourceFile != "":
		log.Info("Processing file", "file", opts.SourceFile)
		img, err := image.Load(opts.SourceFile)
		if err != nil {
			return image.Image{}, fmt.Errorf("loading image failed: %w", err)
		}
		return img, nil

	default:
		return image.Image{}, errors.New("no program given")
	}
}

func dumpStack(w io.Writer, stack []int64) {
	fmt.Fprintln(w, color.GreenText("=== Residual Stack ==="))
	if len(stack) == 0 {
		fmt.Fprintln(w, color.GrayText("(empty)"))
		return
	}

	for i := len(stack) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "%s: %d\n", color.CyanText(fmt.Sprintf("%d", i)), stack[i])
	}
}
