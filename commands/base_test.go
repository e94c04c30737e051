package commands

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ExampleBytesToHuman() {

	// < 1k is presented directly
	fmt.Println(BytesToHuman(512))

	// Multiples > 10 are shown without decimal.
	fmt.Println(BytesToHuman(23 * 10e8))

	// Multiples < 10 are shown with decimal.
	fmt.Println(BytesToHuman(5 * 1024))

	// Output: 512
	// 23G
	// 5.1K
}

func TestAllCommands(t *testing.T) {
	for _, name := range ListBuiltinCommands() {
		t.Run(name, func(t *testing.T) {
			if AllCommands[name] == nil {
				t.Fatal("nil command", name)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, "")

	for _, name := range ListBuiltinCommands() {
		assert.NotNil(t, env.proc.GetCommand(Scope+":"+name, ""), name)
	}
}

func TestAdapt(t *testing.T) {
	env := newTestEnv(t, "")
	env.proc.AddFunction("test", "args", Adapt("args", func(e *Env) int {
		e.SetResult(strings.Join(e.Args(), ","))
		return len(e.Values())
	}))

	got, err := env.run(t, "args a 1 [x y]")
	require.NoError(t, err)
	assert.Equal(t, "args,a,1,[x, y]", got)
	assert.Equal(t, 3, env.session.ExitCode())
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	proc    *shell.Processor
	fs      afero.Fs
	session *shell.Session
	stdout  *lockedBuffer
	stderr  *lockedBuffer
}

// newTestEnv creates a session in /home/test on an in-memory filesystem
// with every builtin registered.
func newTestEnv(t *testing.T, stdin string) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home/test", 0o755))

	proc := shell.NewProcessor(shell.Options{
		Fs:  fs,
		Dir: "/home/test",
		Env: []string{"HOME=/home/test", "USER=test"},
	})
	Register(proc)

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

func (e *testEnv) writeFiles(t *testing.T, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, e.fs.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, afero.WriteFile(e.fs, name, []byte(content), 0o644))
	}
}

func (e *testEnv) readFile(t *testing.T, name string) string {
	t.Helper()
	b, err := afero.ReadFile(e.fs, name)
	require.NoError(t, err)
	return string(b)
}

type goldenTestSuite map[string]goldenTest

type goldenTest struct {
	Line  string
	Files map[string]string
}

// Run executes each line and compares stdout followed by stderr to
// testdata/golden/<prefix>-<name>.golden.
func (gts goldenTestSuite) Run(t *testing.T, prefix string) {
	t.Helper()

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
	)

	for tn, tc := range gts {
		t.Run(tn, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.writeFiles(t, tc.Files)

			_, err := env.run(t, tc.Line)
			require.NoError(t, err)

			g.Assert(t, prefix+"-"+tn, []byte(env.stdout.String()+env.stderr.String()))
		})
	}
}
