package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/josephlewis42/pipesh/core/vos"
	getopt "github.com/pborman/getopt/v2"
	"github.com/spf13/afero"
)

// Scope is the command scope builtins are registered under.
const Scope = "sh"

// BuiltinFunc is a builtin command. It reports failures with an exit code
// like a UNIX utility.
type BuiltinFunc func(env *Env) int

// AllCommands holds a list of all registered commands
var AllCommands = make(map[string]BuiltinFunc)

func mustAddBuiltin(name string, cmd BuiltinFunc) {
	if _, ok := AllCommands[name]; ok {
		panic(fmt.Sprintf("duplicate builtin %q", name))
	}
	AllCommands[name] = cmd
}

// ListBuiltinCommands returns the names of all builtins in order.
func ListBuiltinCommands() []string {
	var out []string
	for name := range AllCommands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Register adds every builtin to the processor under Scope.
func Register(p *shell.Processor) {
	for name, cmd := range AllCommands {
		p.AddFunction(Scope, name, Adapt(name, cmd))
	}
}

// Adapt turns a builtin into a shell function. Arguments are formatted as
// strings and a non-zero exit code is set on the calling process.
func Adapt(name string, cmd BuiltinFunc) shell.FunctionFunc {
	return func(proc shell.Process, args []interface{}) (interface{}, error) {
		env := &Env{
			Process: proc,
			args:    []string{name},
			values:  args,
		}
		for _, arg := range args {
			env.args = append(env.args, proc.Session().Format(arg, shell.Part))
		}

		if code := cmd(env); code != 0 {
			proc.SetError(code)
		}
		return env.result, env.err
	}
}

// Env is what a builtin runs against: the calling process plus its
// arguments.
type Env struct {
	shell.Process

	args   []string
	values []interface{}
	result interface{}
	err    error
}

// Args returns the command name followed by the arguments as strings.
func (e *Env) Args() []string {
	return e.args
}

// Values returns the arguments as they were passed, without the name.
func (e *Env) Values() []interface{} {
	return e.values
}

// SetResult sets the value the command returns to the shell.
func (e *Env) SetResult(v interface{}) {
	e.result = v
}

// Fail makes the command return err to the shell rather than an exit code.
func (e *Env) Fail(err error) {
	e.err = err
}

func (e *Env) Fs() vos.VFS {
	return e.Session().Fs()
}

func (e *Env) Getwd() string {
	return e.Session().CurrentDir()
}

// Resolve makes name absolute against the working directory.
func (e *Env) Resolve(name string) string {
	return vos.Resolve(e.Getwd(), name)
}

func (e *Env) Open(name string) (afero.File, error) {
	return e.Fs().Open(e.Resolve(name))
}

func (e *Env) Getenv(key string) string {
	return e.Session().Env().Getenv(key)
}

func BytesToHuman(bytes int64) string {
	for _, e := range []struct {
		unit  string
		power int64
	}{
		{"P", 1e15},
		{"T", 1e12},
		{"G", 1e9},
		{"M", 1e6},
		{"K", 1e3},
	} {
		quotient := bytes / e.power
		switch {
		case quotient == 0:
			continue
		case quotient > 10:
			return fmt.Sprintf("%d%s", quotient, e.unit)
		default:
			return fmt.Sprintf("%0.1f%s", float64(bytes)/float64(e.power), e.unit)
		}
	}

	return fmt.Sprintf("%d", bytes)
}

// UidResolver maps user IDs to names using /etc/passwd if the filesystem
// has one.
func UidResolver(env *Env) func(int) string {
	return idResolver(env, "/etc/passwd")
}

// GidResolver maps group IDs to names using /etc/group.
func GidResolver(env *Env) func(int) string {
	return idResolver(env, "/etc/group")
}

// idResolver reads a name:password:id table. ID 0 is root unless the table
// says otherwise and unknown IDs are printed as numbers.
func idResolver(env *Env, table string) func(int) string {
	names := map[int]string{0: "root"}

	if data, err := afero.ReadFile(env.Fs(), table); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			fields := strings.SplitN(line, ":", 4)
			if len(fields) < 3 {
				continue
			}
			if id, err := strconv.Atoi(fields[2]); err == nil {
				names[id] = fields[0]
			}
		}
	}

	return func(id int) string {
		if name, ok := names[id]; ok {
			return name
		}
		return strconv.Itoa(id)
	}
}

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a sone line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool
	// NeverBail skips interacting with stdout/stderr on failure and
	// always runs the callback.
	NeverBail bool

	flags *getopt.Set
	name  string
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was succcessful call the callback.
func (s *SimpleCommand) Run(env *Env, callback func() int) int {
	opts := s.Flags()
	s.name = env.Args()[0]

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(env.Args(), nil)
	if err != nil && !s.NeverBail {
		fmt.Fprintf(env.Stderr(), "error: %s\n\n", err)

		s.PrintHelp(env.Stdout())
		return 1
	}

	if *s.ShowHelp {
		s.PrintHelp(env.Stdout())
		return 0
	}

	return callback()
}

// RunE is like Run, but a callback error is printed as a diagnostic and
// turns into exit code 1. Interruptions are passed back to the shell
// untouched.
func (s *SimpleCommand) RunE(env *Env, callback func() error) int {
	return s.Run(env, func() int {
		err := callback()
		switch {
		case err == nil:
			return 0
		case shell.IsInterruption(err):
			env.Fail(err)
			return 1
		default:
			s.LogProgramError(env, err)
			return 1
		}
	})
}

// LogProgramError writes a diagnostic prefixed by the command name.
func (s *SimpleCommand) LogProgramError(env *Env, err error) {
	fmt.Fprintf(env.Stderr(), "%s: %v\n", s.name, err)
}

// RunEachFileOrStdin calls callback for each named file, or stdin if there
// are none. "-" also names stdin. Files that can't be opened are reported
// and skipped.
func (s *SimpleCommand) RunEachFileOrStdin(env *Env, files []string, callback func(name string, fd io.Reader) error) int {
	if len(files) == 0 {
		files = []string{"-"}
	}

	exitCode := 0
	for _, name := range files {
		var err error
		if name == "-" {
			err = callback(name, env.Stdin())
		} else {
			var fd afero.File
			fd, err = env.Open(name)
			if err == nil {
				err = callback(name, fd)
				fd.Close()
			}
		}

		switch {
		case err == nil:
		case shell.IsInterruption(err):
			env.Fail(err)
			return 1
		default:
			s.LogProgramError(env, err)
			exitCode = 1
		}
	}
	return exitCode
}

// writeErr remembers the first error from a series of writes.
type writeErr struct {
	w   io.Writer
	err error
}

func (w *writeErr) Printf(format string, a ...interface{}) {
	if w.err == nil {
		_, w.err = fmt.Fprintf(w.w, format, a...)
	}
}

func (w *writeErr) Println(a ...interface{}) {
	if w.err == nil {
		_, w.err = fmt.Fprintln(w.w, a...)
	}
}

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

var (
	ColorBoldBlue  = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
	ColorBoldCyan  = color.New(color.FgCyan, color.Bold)
	ColorBoldRed   = color.New(color.FgRed, color.Bold)
)

type ColorPrinter struct {
	value *string
	env   *Env
}

// Init sets up the flag and environment to determine the color output.
func (c *ColorPrinter) Init(flags *getopt.Set, env *Env) {
	c.env = env
	c.value = flags.EnumLong(
		"color",
		rune(0), // No short flag.
		[]string{colorAlways, colorAuto, colorNever},
		colorAuto,
		"colorize the output (always|auto|never)")
}

func (c *ColorPrinter) ShouldColor() bool {
	switch {
	case *c.value == colorNever:
		return false
	case *c.value == colorAlways:
		return true
	default:
		return !color.NoColor && writesToTerminal(c.env.Stdout())
	}
}

func (c *ColorPrinter) Sprintf(col *color.Color, format string, a ...interface{}) string {
	if c.ShouldColor() {
		forced := *col
		forced.EnableColor()
		return forced.Sprintf(format, a...)
	}
	return fmt.Sprintf(format, a...)
}

// writesToTerminal reports whether w reaches the session's terminal.
func writesToTerminal(w io.Writer) bool {
	if mc, ok := w.(*vos.MultiChannel); ok {
		for _, stream := range mc.Streams() {
			if vos.IsTerminal(stream) {
				return true
			}
		}
		return false
	}
	return vos.IsTerminal(w)
}

var (
	errMissingOperand   = errors.New("missing operand")
	errTooManyArguments = errors.New("too many arguments")
)
