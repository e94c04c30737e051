package ttylog

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeConversions(t *testing.T) {
	cases := map[string]struct {
		microseconds int64
		seconds      float64
	}{
		"precision": {
			microseconds: 1,
			seconds:      1e-6,
		},
		"negative": {
			microseconds: -631119539e6,
			seconds:      -631119539,
		},
		"positive": {
			microseconds: 631119539e6,
			seconds:      631119539,
		},
		"bigprecise": {
			microseconds: 123456789987654,
			seconds:      123456789.987654,
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.InDelta(t, tc.seconds, castSeconds(tc.microseconds), 1e-9)
			assert.Equal(t, tc.microseconds, castMicros(tc.seconds))
		})
	}
}

func fixedClock(micros ...int64) func() time.Time {
	i := 0
	return func() time.Time {
		t := time.UnixMicro(micros[i])
		if i < len(micros)-1 {
			i++
		}
		return t
	}
}

func TestRecorder_asciicastRoundTrip(t *testing.T) {
	var stdout, stderr, cast bytes.Buffer
	stdin := strings.NewReader("ls\n")

	rec := NewRecorder(
		vos.NewVIOAdapter(stdin, &stdout, &stderr),
		NewAsciicastLogSink(&cast, DefaultAsciicastHeader("test")),
	)
	rec.Now = fixedClock(1_000_000, 1_500_000, 2_000_000, 2_250_000)

	buf := make([]byte, 16)
	n, err := rec.Stdin().Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ls\n", string(buf[:n]))

	_, err = io.WriteString(rec.Stdout(), "a.txt\n")
	require.NoError(t, err)
	_, err = io.WriteString(rec.Stderr(), "oops\n")
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	_, err = io.WriteString(rec.Stdout(), "after close\n")
	require.NoError(t, err)

	assert.Equal(t, "a.txt\nafter close\n", stdout.String())
	assert.Equal(t, "oops\n", stderr.String())

	lines := strings.Split(strings.TrimSpace(cast.String()), "\n")
	require.Len(t, lines, 4, "header and three events")
	assert.Contains(t, lines[0], `"version":2`)
	assert.Equal(t, `[0,"i","ls\n"]`, lines[1])
	assert.Equal(t, `[0.5,"o","a.txt\n"]`, lines[2])
	assert.Equal(t, `[1,"o","oops\n"]`, lines[3])

	var got []*Entry
	err = Replay(NewAsciicastLogSource(&cast), func(e *Entry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)

	want := []*Entry{
		{TimestampMicros: 0, Fd: FDStdin, Data: []byte("ls\n")},
		{TimestampMicros: 500_000, Fd: FDStdout, Data: []byte("a.txt\n")},
		{TimestampMicros: 1_000_000, Fd: FDStdout, Data: []byte("oops\n")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Replay() mismatch (-want +got):\n%s", diff)
	}
}

func TestClientOutput(t *testing.T) {
	var out bytes.Buffer
	sink := NewCRLFAdapter(NewClientOutput(&out))

	require.NoError(t, sink(&Entry{Fd: FDStdin, Data: []byte("typed\n")}))
	require.NoError(t, sink(&Entry{Fd: FDStdout, Data: []byte("one\ntwo\r\n")}))
	require.NoError(t, sink(&Entry{Fd: FDStderr, Data: []byte("err\n")}))
	require.NoError(t, sink(&Entry{Close: true}))

	assert.Equal(t, "one\r\ntwo\r\nerr\r\n", out.String())
}

func TestAsciicastLogSource_malformed(t *testing.T) {
	cases := map[string]struct {
		cast    string
		wantErr string
	}{
		"short event":  {cast: "{\"version\":2}\n[1, \"o\"]\n", wantErr: "expected 3 entries got 2"},
		"wrong types":  {cast: "{\"version\":2}\n[\"1\", \"o\", \"x\"]\n", wantErr: "malformed data"},
		"bad header":   {cast: "not json\n", wantErr: "malformed header"},
		"old version":  {cast: "{\"version\":1}\n", wantErr: "unsupported asciicast version 1"},
		"not an array": {cast: "{\"version\":2}\n{}\n", wantErr: "cannot unmarshal"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			_, err := NewAsciicastLogSource(strings.NewReader(tc.cast)).Next()
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestAsciicastLogSource_skipsUnknownEvents(t *testing.T) {
	cast := strings.Join([]string{
		`{"version":2,"width":100,"height":30,"title":"demo"}`,
		``,
		`[0.25,"m","marker"]`,
		`[0.5,"o","shown"]`,
	}, "\n")
	src := NewAsciicastLogSource(strings.NewReader(cast))

	header, err := src.Header()
	require.NoError(t, err)
	assert.Equal(t, 100, header.Width)
	assert.Equal(t, "demo", header.Title)

	entry, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, &Entry{TimestampMicros: 500_000, Fd: FDStdout, Data: []byte("shown")}, entry)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPlayback(t *testing.T) {
	cases := map[string]struct {
		playback Playback
		want     []time.Duration
	}{
		"recorded pace": {
			playback: Playback{},
			want:     []time.Duration{500 * time.Millisecond, 4 * time.Second},
		},
		"idle limit": {
			playback: Playback{MaxIdle: time.Second},
			want:     []time.Duration{500 * time.Millisecond, time.Second},
		},
		"double speed": {
			playback: Playback{Speed: 2},
			want:     []time.Duration{250 * time.Millisecond, 2 * time.Second},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			var slept []time.Duration
			tc.playback.Sleep = func(d time.Duration) { slept = append(slept, d) }

			var out bytes.Buffer
			sink := tc.playback.Sink(NewClientOutput(&out))
			for i, micros := range []int64{1_000_000, 1_500_000, 5_500_000, 5_500_000} {
				require.NoError(t, sink(&Entry{TimestampMicros: micros, Fd: FDStdout, Data: []byte{'a' + byte(i)}}))
			}

			assert.Equal(t, tc.want, slept)
			assert.Equal(t, "abcd", out.String())
		})
	}
}

func TestRecorder_stopsOnSinkError(t *testing.T) {
	var stdout bytes.Buffer
	calls := 0
	rec := NewRecorder(vos.NewVIOAdapter(nil, &stdout, nil), func(*Entry) error {
		calls++
		return io.ErrShortWrite
	})

	_, err := io.WriteString(rec.Stdout(), "one")
	require.NoError(t, err)
	_, err = io.WriteString(rec.Stdout(), "two")
	require.NoError(t, err)

	assert.Equal(t, "onetwo", stdout.String())
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, rec.Err(), io.ErrShortWrite)
}
