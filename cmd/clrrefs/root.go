package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skdltmxn/clrrefs/clr"
	"github.com/skdltmxn/clrrefs/internal/config"
	"github.com/skdltmxn/clrrefs/internal/filter"
	"github.com/skdltmxn/clrrefs/internal/report"
	"github.com/skdltmxn/clrrefs/internal/resolve"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *zap.Logger

	verbose   bool
	patterns  []string
	group     bool
	local     bool
	enclosing bool
	maxDepth  int
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "clrrefs [flags] <path/to/assembly.dll>",
		Short: "List external types referenced by a .NET assembly",
		Long: `clrrefs reads the metadata of a managed PE image and prints every
type it references from another assembly as JSON.

Each TypeRef is followed through its resolution scope to the owning
AssemblyRef. Nested types are reported with their enclosing types,
for example N.Outer.Inner.`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: a.runRefs,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &exitError{code: exitUsage, err: err}
	})

	flags := cmd.Flags()
	flags.StringArrayVarP(&a.patterns, "assembly", "a", nil, "assemblies filter regexp (repeatable, whole name must match)")
	flags.BoolVarP(&a.group, "group", "g", false, "group the resulting JSON by assembly name")
	flags.BoolVar(&a.local, "local", false, "also report types scoped to this module or a module reference")
	flags.BoolVar(&a.enclosing, "enclosing", false,
		"also report enclosing types of nested references on their own (without it they appear only in the nested name, even if used directly)")
	flags.IntVar(&a.maxDepth, "max-depth", 0, "maximum resolution scope chain length (default from config)")

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log parsing details to stderr")

	cmd.AddCommand(newInfoCmd(a))
	cmd.AddCommand(newTablesCmd(a))
	return cmd
}

// setup loads configuration and installs the loggers.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	a.cfg = cfg

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.logger = logger
	clr.SetLogger(logger.Named("clr"))
	resolve.SetLogger(logger.Named("resolve"))
	return nil
}

func (a *app) options() resolve.Options {
	opts := resolve.Options{
		IncludeLocal:     a.cfg.IncludeLocal || a.local,
		IncludeEnclosing: a.enclosing,
		MaxDepth:         a.cfg.MaxScopeDepth,
	}
	if a.maxDepth > 0 {
		opts.MaxDepth = a.maxDepth
	}
	return opts
}

// openFile validates the positional arguments and opens the image.
func (a *app) openFile(cmd *cobra.Command, args []string) (*clr.File, error) {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "Assembly file not specified")
		fmt.Fprint(a.stderr, cmd.UsageString())
		return nil, &exitError{code: exitArgs, err: fmt.Errorf("expected one assembly file, got %d arguments", len(args))}
	}

	f, err := clr.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("cannot open %q: %w", args[0], err)
	}
	return f, nil
}

func (a *app) runRefs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	set, err := filter.Compile(a.patterns)
	if err != nil {
		return err
	}

	f, err := a.openFile(cmd, args)
	if err != nil {
		return err
	}
	defer f.Close()

	opts := a.options()
	if set.Len() > 0 {
		opts.Filter = set
		a.logger.Debug("filtering assemblies", zap.Strings("patterns", set.Exprs()))
	}

	refs, err := f.References(opts)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, refs, a.group); err != nil {
		return err
	}
	_, err = a.stdout.Write(buf.Bytes())
	return err
}
