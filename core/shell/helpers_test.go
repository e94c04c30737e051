package shell

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/josephlewis42/pipesh/core/expand"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	proc    *Processor
	session *Session
	fs      afero.Fs
	stdout  *lockedBuffer
	stderr  *lockedBuffer
}

// newTestEnv creates a session on an in-memory filesystem with a small
// set of commands registered under the "test" scope.
func newTestEnv(t *testing.T, stdin string) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home/test", 0o755))

	proc := NewProcessor(Options{
		Fs:  fs,
		Dir: "/home/test",
		Env: []string{"HOME=/home/test", "USER=test"},
	})
	registerTestCommands(proc)

	env := &testEnv{
		proc:   proc,
		fs:     fs,
		stdout: &lockedBuffer{},
		stderr: &lockedBuffer{},
	}
	session, err := proc.CreateSession(strings.NewReader(stdin), env.stdout, env.stderr)
	require.NoError(t, err)
	env.session = session
	t.Cleanup(proc.Stop)
	return env
}

func (e *testEnv) run(t *testing.T, line string) (interface{}, error) {
	t.Helper()
	return e.session.Execute(line)
}

func (e *testEnv) readFile(t *testing.T, name string) string {
	t.Helper()
	b, err := afero.ReadFile(e.fs, name)
	require.NoError(t, err)
	return string(b)
}

func registerTestCommands(p *Processor) {
	p.AddFunction("test", "echo", func(proc Process, args []interface{}) (interface{}, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = proc.Session().Format(a, Part)
		}
		_, err := io.WriteString(proc.Stdout(), strings.Join(parts, " ")+"\n")
		return nil, err
	})

	p.AddFunction("test", "cat", func(proc Process, args []interface{}) (interface{}, error) {
		_, err := io.Copy(proc.Stdout(), proc.Stdin())
		return nil, err
	})

	p.AddFunction("test", "upper", func(proc Process, args []interface{}) (interface{}, error) {
		b, err := io.ReadAll(proc.Stdin())
		if err != nil {
			return nil, err
		}
		_, err = io.WriteString(proc.Stdout(), strings.ToUpper(string(b)))
		return nil, err
	})

	p.AddFunction("test", "both", func(proc Process, args []interface{}) (interface{}, error) {
		io.WriteString(proc.Stdout(), "out\n")
		io.WriteString(proc.Stderr(), "err\n")
		return nil, nil
	})

	p.AddFunction("test", "fail", func(proc Process, args []interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	})

	p.AddFunction("test", "exit", func(proc Process, args []interface{}) (interface{}, error) {
		code := 1
		if len(args) > 0 {
			code = args[0].(int)
		}
		proc.SetError(code)
		return nil, nil
	})

	p.AddFunction("test", "add", func(proc Process, args []interface{}) (interface{}, error) {
		sum := 0
		for _, a := range args {
			n, ok := a.(int)
			if !ok {
				return nil, &expand.ArgumentError{Msg: "not a number: " + expand.Stringify(a)}
			}
			sum += n
		}
		return sum, nil
	})

	p.AddFunction("test", "list", func(proc Process, args []interface{}) (interface{}, error) {
		return append([]interface{}{}, args...), nil
	})
}

type counter struct {
	Total int
}

func (c *counter) Add(n int) int {
	c.Total += n
	return c.Total
}

func (c *counter) GetName() string {
	return "counter"
}

func (c *counter) Greet(proc Process, name string) error {
	_, err := io.WriteString(proc.Stdout(), "hello "+name+"\n")
	return err
}
