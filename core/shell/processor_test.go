package shell

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedFunction struct {
	name string
}

func (n *namedFunction) Execute(proc Process, args []interface{}) (interface{}, error) {
	return n.name, nil
}

func TestProcessor_GetCommand(t *testing.T) {
	low := &namedFunction{"low"}
	high := &namedFunction{"high"}

	cases := map[string]struct {
		register func(p *Processor)
		name     string
		path     string
		want     Function
	}{
		"highest rank wins": {
			register: func(p *Processor) {
				p.AddCommand("s", low, "f", 1)
				p.AddCommand("s", high, "f", 5)
			},
			name: "s:f",
			want: high,
		},
		"registration order doesn't matter": {
			register: func(p *Processor) {
				p.AddCommand("s", high, "f", 5)
				p.AddCommand("s", low, "f", 1)
			},
			name: "s:f",
			want: high,
		},
		"ties go to latest": {
			register: func(p *Processor) {
				p.AddCommand("s", low, "f", 0)
				p.AddCommand("s", high, "f", 0)
			},
			name: "s:f",
			want: high,
		},
		"re-registering replaces rank": {
			register: func(p *Processor) {
				p.AddCommand("s", low, "f", 9)
				p.AddCommand("s", high, "f", 5)
				p.AddCommand("s", low, "f", 1)
			},
			name: "s:f",
			want: high,
		},
		"case insensitive": {
			register: func(p *Processor) {
				p.AddCommand("Sys", high, "Echo", 0)
			},
			name: "sys:ECHO",
			want: high,
		},
		"no scope": {
			register: func(p *Processor) {
				p.AddCommand("s", high, "f", 0)
			},
			name: "f",
			want: nil,
		},
		"unknown": {
			register: func(p *Processor) {},
			name:     "s:f",
			want:     nil,
		},
		"scope path order": {
			register: func(p *Processor) {
				p.AddCommand("a", low, "f", 0)
				p.AddCommand("b", high, "f", 0)
			},
			name: "*:f",
			path: "b:a",
			want: high,
		},
		"scope path skips empty": {
			register: func(p *Processor) {
				p.AddCommand("a", low, "f", 0)
			},
			name: "*:f",
			path: "b:a",
			want: low,
		},
		"star segment takes first registered": {
			register: func(p *Processor) {
				p.AddCommand("x", low, "f", 0)
				p.AddCommand("y", high, "f", 9)
			},
			name: "*:f",
			path: "*",
			want: low,
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			p := NewProcessor(Options{Fs: afero.NewMemMapFs(), Dir: "/"})
			tc.register(p)

			got := p.GetCommand(tc.name, tc.path)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Same(t, tc.want, got)
		})
	}
}

func TestProcessor_methodProxy(t *testing.T) {
	p := NewProcessor(Options{Fs: afero.NewMemMapFs(), Dir: "/"})
	c := &counter{}
	p.AddCommands("obj", c)

	assert.Contains(t, p.Commands(), "obj:add")
	assert.Contains(t, p.Commands(), "obj:greet")

	add := p.GetCommand("obj:add", "")
	require.NotNil(t, add)

	got, err := add.Execute(nil, []interface{}{"2"})
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	got, err = add.Execute(nil, []interface{}{3})
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	_, err = add.Execute(nil, nil)
	assert.EqualError(t, err, "calling add on *shell.counter: too few arguments, got 0")

	_, err = add.Execute(nil, []interface{}{"x"})
	assert.EqualError(t, err, `calling add on *shell.counter: cannot convert "x" to int`)
}

func TestProcessor_RemoveCommand(t *testing.T) {
	p := NewProcessor(Options{Fs: afero.NewMemMapFs(), Dir: "/"})
	low := &namedFunction{"low"}
	high := &namedFunction{"high"}
	p.AddCommand("s", low, "f", 1)
	p.AddCommand("s", high, "f", 5)

	p.RemoveCommand("s", "f", high)
	assert.Same(t, low, p.GetCommand("s:f", ""))

	p.RemoveCommand("s", "f", nil)
	assert.Nil(t, p.GetCommand("s:f", ""))
	assert.Empty(t, p.Commands())
}

func TestProcessor_Stop(t *testing.T) {
	p := NewProcessor(Options{Fs: afero.NewMemMapFs(), Dir: "/"})

	first, err := p.CreateSession(nil, nil, nil)
	require.NoError(t, err)
	child, err := p.CreateChildSession(first)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Sessions())

	p.Stop()
	assert.True(t, p.Stopped())
	assert.True(t, first.Closed())
	assert.True(t, child.Closed())
	assert.Equal(t, 0, p.Sessions())

	_, err = p.CreateSession(nil, nil, nil)
	assert.ErrorIs(t, err, ErrProcessorStopped)

	_, err = first.Execute("echo hi")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestProcessor_CreateChildSession(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/srv", 0o755))
	p := NewProcessor(Options{Fs: fs, Dir: "/", Env: []string{"A=1"}})

	var out bytes.Buffer
	parent, err := p.CreateSession(nil, &out, &out)
	require.NoError(t, err)
	require.NoError(t, parent.SetCurrentDir("/srv"))
	parent.Put("local", "parent only")

	child, err := p.CreateChildSession(parent)
	require.NoError(t, err)
	assert.Equal(t, "/srv", child.CurrentDir())
	assert.Equal(t, "1", child.Env().Getenv("A"))
	v, err := child.Get("local")
	require.NoError(t, err)
	assert.Nil(t, v)

	parent.Close()
	_, err = p.CreateChildSession(parent)
	assert.ErrorIs(t, err, ErrSessionClosed)

	other := NewProcessor(Options{Fs: fs, Dir: "/"})
	_, err = other.CreateChildSession(child)
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestProcessor_listeners(t *testing.T) {
	env := newTestEnv(t, "")

	var calls []string
	env.proc.AddListener(&ExecuteListenerFuncs{
		Before: func(s *Session, line string) {
			calls = append(calls, "before "+line)
		},
		After: func(s *Session, line string, result interface{}, err error) {
			calls = append(calls, "after "+line)
		},
	})
	env.proc.AddListener(&ExecuteListenerFuncs{
		Before: func(s *Session, line string) {
			panic("listener failure")
		},
	})

	_, err := env.run(t, "echo hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"before echo hi", "after echo hi"}, calls)
	assert.Equal(t, "hi\n", env.stdout.String())
}

func TestProcessor_constants(t *testing.T) {
	env := newTestEnv(t, "")
	env.proc.AddConstant("PI", 3)
	env.session.Put("PI", 4)

	v, err := env.session.Get("PI")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = env.session.Get(VarConstants)
	require.NoError(t, err)
	assert.Equal(t, []string{"PI"}, v)

	env.proc.AddConstant("PI", nil)
	v, err = env.session.Get("PI")
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestProcessor_AddFunctionReplaces(t *testing.T) {
	p := NewProcessor(Options{Fs: afero.NewMemMapFs(), Dir: "/"})
	first := FunctionFunc(func(proc Process, args []interface{}) (interface{}, error) {
		return "first", nil
	})
	second := FunctionFunc(func(proc Process, args []interface{}) (interface{}, error) {
		return "second", nil
	})

	p.AddFunction("s", "f", first)
	p.AddFunction("s", "f", second)
	assert.Len(t, (*p.commands.Load())[commandKey("s", "f")], 1)

	got, err := p.GetCommand("s:f", "").Execute(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	p.RemoveCommand("s", "f", second)
	assert.Nil(t, p.GetCommand("s:f", ""))
}
