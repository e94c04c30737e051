package shell

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe_redirections(t *testing.T) {
	cases := map[string]struct {
		files  map[string]string
		line   string
		stdin  string
		stdout string
		stderr string
		want   map[string]string
	}{
		"write": {
			line: "echo hello > out",
			want: map[string]string{"/home/test/out": "hello\n"},
		},
		"truncate": {
			files: map[string]string{"/home/test/out": "old content\n"},
			line:  "echo new > out",
			want:  map[string]string{"/home/test/out": "new\n"},
		},
		"append": {
			files: map[string]string{"/home/test/out": "first\n"},
			line:  "echo second >> out",
			want:  map[string]string{"/home/test/out": "first\nsecond\n"},
		},
		"fan out": {
			line: "echo hello >f1 >f2",
			want: map[string]string{
				"/home/test/f1": "hello\n",
				"/home/test/f2": "hello\n",
			},
		},
		"absolute path": {
			line: "echo x > /tmp.txt",
			want: map[string]string{"/tmp.txt": "x\n"},
		},
		"variable target": {
			line: "name = target.txt; echo x > $name",
			want: map[string]string{"/home/test/target.txt": "x\n"},
		},
		"stderr": {
			line:   "both 2> errors",
			stdout: "out\n",
			want:   map[string]string{"/home/test/errors": "err\n"},
		},
		"both streams": {
			line: "both &> all",
			want: map[string]string{"/home/test/all": "out\nerr\n"},
		},
		"alias stderr to stdout": {
			line: "both > all 2>&1",
			want: map[string]string{"/home/test/all": "out\nerr\n"},
		},
		"alias before redirect keeps terminal": {
			line:   "both 2>&1 > only-out",
			stdout: "err\n",
			want:   map[string]string{"/home/test/only-out": "out\n"},
		},
		"diagnostic through pipe": {
			line:   "fail 2>&1 | upper",
			stdout: "PIPESH: ERROR: BOOM\n",
		},
		"pipe stderr": {
			line:   "both |& upper",
			stdout: "OUT\nERR\n",
		},
		"read": {
			files:  map[string]string{"/home/test/in": "from file\n"},
			line:   "cat < in",
			stdout: "from file\n",
		},
		"read several": {
			files: map[string]string{
				"/home/test/a": "a\n",
				"/home/test/b": "b\n",
			},
			line:   "cat < a < b",
			stdout: "a\nb\n",
		},
		"pipe and file": {
			line:   "echo both > copy | upper",
			stdout: "BOTH\n",
			want:   map[string]string{"/home/test/copy": "both\n"},
		},
		"here document": {
			line:   "cat <<EOF\nline one\n  line two\nEOF\n",
			stdout: "line one\n  line two\n",
		},
		"here document strips tabs": {
			line:   "cat <<-EOF\n\tindented\n\t\tdeeper\n\tEOF\n",
			stdout: "indented\ndeeper\n",
		},
		"here document is literal": {
			line:   "cat <<'EOF'\n$HOME\nEOF\n",
			stdout: "$HOME\n",
		},
		"here string": {
			line:   `cat <<< "home is $HOME"`,
			stdout: "home is /home/test\n",
		},
		"empty statement copies": {
			files: map[string]string{"/home/test/in": "copied\n"},
			line:  "< in > out",
			want:  map[string]string{"/home/test/out": "copied\n"},
		},
		"empty statement without input": {
			line:  "> created",
			stdin: "ignored",
			want:  map[string]string{"/home/test/created": ""},
		},
		"missing file": {
			line:   "cat < missing",
			stderr: "pipesh: IOError: open /home/test/missing: file does not exist\n",
		},
		"empty target": {
			line:   "echo x > $unset",
			stderr: "pipesh: IOError: redirect $unset: file does not exist\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			env := newTestEnv(t, tc.stdin)
			for name, content := range tc.files {
				require.NoError(t, afwrite(env, name, content))
			}

			_, _ = env.run(t, tc.line)

			assert.Equal(t, tc.stdout, env.stdout.String())
			assert.Equal(t, tc.stderr, env.stderr.String())
			for name, content := range tc.want {
				assert.Equal(t, content, env.readFile(t, name), name)
			}
		})
	}
}

func TestPipe_stdin(t *testing.T) {
	env := newTestEnv(t, "typed input\n")

	_, err := env.run(t, "upper")
	require.NoError(t, err)
	assert.Equal(t, "TYPED INPUT\n", env.stdout.String())
}

func TestPipe_earlyReaderExit(t *testing.T) {
	env := newTestEnv(t, "")
	env.proc.AddFunction("test", "first", func(proc Process, args []interface{}) (interface{}, error) {
		buf := make([]byte, 2)
		n, err := proc.Stdin().Read(buf)
		if err != nil {
			return nil, err
		}
		_, err = proc.Stdout().Write(buf[:n])
		return nil, err
	})
	env.proc.AddFunction("test", "forever", func(proc Process, args []interface{}) (interface{}, error) {
		for {
			if _, err := proc.Stdout().Write([]byte("y\n")); err != nil {
				return nil, err
			}
		}
	})

	_, err := env.run(t, "forever | first")
	require.NoError(t, err)
	assert.Equal(t, "y\n", env.stdout.String())
	assert.Empty(t, env.stderr.String())
}

func TestPipe_Result(t *testing.T) {
	env := newTestEnv(t, "")

	done := make(chan *Job, 1)
	env.session.SetJobListener(func(j *Job, previous, current JobStatus) {
		if current == Done {
			done <- j
		}
	})

	_, err := env.run(t, "fail | cat")
	require.NoError(t, err)

	var job *Job
	select {
	case job = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never finished")
	}

	res := job.Result()
	require.NotNil(t, res)
	assert.NoError(t, res.Err)
	assert.EqualError(t, res.PipeErr, "boom")
	assert.True(t, IsReported(res.PipeErr))
	assert.True(t, res.Success())

	pipes := job.Processes()
	require.Len(t, pipes, 2)
	assert.Equal(t, "fail", pipes[0].Statement())
	assert.Equal(t, "cat", pipes[1].Statement())
}
