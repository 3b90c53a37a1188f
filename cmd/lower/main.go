package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	statemachine "github.com/wippyai/statemachine"
	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
	"github.com/wippyai/statemachine/runtime"
	"github.com/wippyai/statemachine/text"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type options struct {
	src         string
	funcName    string
	suspending  string
	suffix      string
	run         string
	args        string
	live        bool
	fingerprint bool
	verbose     bool
	interactive bool
}

func main() {
	var o options
	flag.StringVar(&o.src, "src", "", "Path to IR module source (- for stdin)")
	flag.StringVar(&o.funcName, "func", "", "Lower only this function (default: whole module)")
	flag.StringVar(&o.suspending, "suspend", "", "Extra suspending callee patterns (io.*,sleep,...)")
	flag.StringVar(&o.suffix, "suffix", "", "Holder class name suffix")
	flag.StringVar(&o.run, "run", "", "Function to run after lowering")
	flag.StringVar(&o.args, "args", "", "Arguments for -run (comma-separated literals)")
	flag.BoolVar(&o.live, "live", false, "Print live locals at each suspension point")
	flag.BoolVar(&o.fingerprint, "fingerprint", false, "Print function fingerprints before and after lowering")
	flag.BoolVar(&o.verbose, "v", false, "Verbose logging")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode: answer suspended calls by hand")
	flag.Parse()

	if o.src == "" {
		fmt.Fprintln(os.Stderr, "Usage: lower -src <module.ir> [-func name] [-suspend patterns] [-live] [-fingerprint]")
		fmt.Fprintln(os.Stderr, "       lower -src <module.ir> -run name [-args 1,2]")
		fmt.Fprintln(os.Stderr, "       lower -src <module.ir> -i  (interactive mode)")
		os.Exit(1)
	}

	if o.verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()
		statemachine.SetLogger(log)
		runtime.SetLogger(log)
	}

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for internal errors raised by the lowering pass and 1 for
// everything else.
func exitCode(err error) int {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Fatal() {
		return 2
	}
	return 1
}

func run(o options) error {
	mod, err := load(o.src)
	if err != nil {
		return err
	}
	cfg := statemachine.Config{HolderSuffix: o.suffix, Suspending: splitList(o.suspending)}

	if o.interactive {
		res, err := statemachine.LowerModule(mod, cfg)
		if err != nil {
			return fmt.Errorf("lower: %w", err)
		}
		return runInteractive(o.src, res.Module)
	}

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	header := func(s string) string {
		if styled {
			return headerStyle.Render(s)
		}
		return ";; " + s
	}
	note := func(s string) string {
		if styled {
			return dimStyle.Render(s)
		}
		return s
	}

	var out *ir.Module
	var lowered map[string]*statemachine.Result
	if o.funcName != "" {
		fn := mod.Func(o.funcName)
		if fn == nil {
			return fmt.Errorf("function %q not found", o.funcName)
		}
		res, err := statemachine.Lower(fn, cfg)
		if err != nil {
			return fmt.Errorf("lower %s: %w", o.funcName, err)
		}
		out = replaceFunc(mod, fn, res)
		lowered = map[string]*statemachine.Result{o.funcName: res}
	} else {
		res, err := statemachine.LowerModule(mod, cfg)
		if err != nil {
			return fmt.Errorf("lower: %w", err)
		}
		out, lowered = res.Module, res.Lowered
		if len(res.Suspending) > 0 {
			fmt.Println(note(";; suspending: " + strings.Join(res.Suspending, " ")))
		}
	}

	fmt.Println(header("lowered " + mod.Name))
	fmt.Println(ir.String(out))

	if o.fingerprint {
		fmt.Println()
		fmt.Println(header("fingerprints"))
		for _, fn := range mod.Funcs() {
			after := fn
			if r, ok := lowered[fn.Name]; ok {
				after = r.Function
			}
			fmt.Printf("%-20s %016x -> %016x\n", fn.Name, ir.Fingerprint(fn), ir.Fingerprint(after))
		}
	}

	if o.live {
		fmt.Println()
		fmt.Println(header("live locals"))
		names := make([]string, 0, len(lowered))
		for name := range lowered {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			r := lowered[name]
			for id := 1; id <= r.Markers; id++ {
				var vars []string
				for _, v := range r.Live[id] {
					vars = append(vars, v.Name)
				}
				fmt.Printf("%s #%d: {%s}\n", name, id, strings.Join(vars, ", "))
			}
		}
	}

	if o.run != "" {
		args, err := parseArgs(o.args)
		if err != nil {
			return err
		}
		ctx := context.Background()
		sched := runtime.NewScheduler(builtins())
		defer func() { _ = sched.Close(ctx) }()
		in := runtime.NewInterpreter(out, runtime.Config{Host: sched})
		v, err := sched.Run(ctx, in, o.run, args...)
		if err != nil {
			return fmt.Errorf("run %s: %w", o.run, err)
		}
		fmt.Println()
		fmt.Printf("%s => %s %s\n", o.run, runtime.Format(v), note(fmt.Sprintf("(%d suspensions)", sched.Steps())))
	}
	return nil
}

// replaceFunc returns a copy of mod with fn swapped for its lowered form and
// the holders placed right after it.
func replaceFunc(mod *ir.Module, fn *ir.Function, res *statemachine.Result) *ir.Module {
	out := &ir.Module{Name: mod.Name, Members: append([]ir.Member(nil), mod.Members...)}
	out.Replace(fn, res.Function)
	var anchor ir.Member = res.Function
	for _, c := range res.Aux {
		out.InsertAfter(anchor, c)
		anchor = c
	}
	return out
}

func load(path string) (*ir.Module, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "read source "+path)
	}
	mod, err := text.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return mod, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseArgs(s string) ([]runtime.Value, error) {
	var out []runtime.Value
	for _, p := range splitList(s) {
		v, err := parseValue(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parseValue reads a literal as written in the textual IR.
func parseValue(s string) (runtime.Value, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "unit":
		return ir.Unit, nil
	}
	if strings.HasPrefix(s, `"`) {
		v, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("bad string %s", s)
		}
		return v, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad literal %q", s)
	}
	return n, nil
}

// builtins are the host functions available to -run. Suspending calls to
// them are parked and answered in order.
func builtins() runtime.HostFuncs {
	return runtime.HostFuncs{
		"echo": func(_ context.Context, args []runtime.Value) (runtime.Value, error) {
			if len(args) == 0 {
				return ir.Unit, nil
			}
			return args[0], nil
		},
		"print": func(_ context.Context, args []runtime.Value) (runtime.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = runtime.Format(a)
			}
			fmt.Println(strings.Join(parts, " "))
			return ir.Unit, nil
		},
		"fail": func(_ context.Context, args []runtime.Value) (runtime.Value, error) {
			var v runtime.Value = "failed"
			if len(args) > 0 {
				v = args[0]
			}
			return nil, &runtime.Thrown{Value: v}
		},
	}
}
