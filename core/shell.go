package core

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/josephlewis42/pipesh/core/parser"
	"github.com/josephlewis42/pipesh/core/scanner"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/josephlewis42/pipesh/core/ttylog"
	"github.com/josephlewis42/pipesh/core/vos"
	"golang.org/x/term"
)

const (
	// ContinuationPrompt is shown while a statement is incomplete.
	ContinuationPrompt = "> "

	defaultWidth = 80
)

// Shell is an interactive session reading lines from a terminal.
type Shell struct {
	runtime  *Runtime
	session  *shell.Session
	Readline *readline.Instance
	stdout   io.Writer
	stderr   io.Writer
	toClose  listCloser

	notesMu sync.Mutex
	notes   []string
}

// NewShell starts an interactive session on the given streams. Sessions
// are recorded when the configuration names a transcript directory.
func NewShell(runtime *Runtime, stdin io.Reader, stdout, stderr io.Writer) (*Shell, error) {
	cfg := runtime.Configuration()
	switch cfg.Color {
	case "never":
		color.NoColor = true
	case "always":
		color.NoColor = false
	}

	var vio vos.VIO = vos.NewVIOAdapter(stdin, stdout, stderr)
	var toClose listCloser
	if cfg.Transcripts != "" {
		name := fmt.Sprintf("%s.%s", time.Now().UTC().Format("20060102T150405.000000Z"), ttylog.AsciicastFileExt)
		fd, err := cfg.OpenTranscript(name)
		if err != nil {
			return nil, fmt.Errorf("couldn't open transcript: %w", err)
		}
		header := ttylog.DefaultAsciicastHeader(cfg.ShellName + " session")
		header.Width = terminalWidth(stdout)
		recorder := ttylog.NewRecorder(vio, ttylog.NewAsciicastLogSink(fd, header))
		toClose = append(toClose, recorder, fd)
		vio = recorder
	}

	complete := &completer{}
	rlConfig := &readline.Config{
		Stdin:                  readline.NewCancelableStdin(vio.Stdin()),
		Stdout:                 vio.Stdout(),
		Stderr:                 vio.Stderr(),
		HistoryFile:            cfg.HistoryPath(),
		DisableAutoSaveHistory: true,
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		AutoComplete:           complete,
		FuncGetWidth: func() int {
			return terminalWidth(stdout)
		},
		FuncIsTerminal: func() bool {
			return isTerminal(stdin) && isTerminal(stdout)
		},
	}

	if err := rlConfig.Init(); err != nil {
		toClose.Close()
		return nil, err
	}

	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		toClose.Close()
		return nil, err
	}

	sh := &Shell{
		runtime:  runtime,
		Readline: rl,
		stdout:   vio.Stdout(),
		stderr:   vio.Stderr(),
		toClose:  toClose,
	}
	complete.shell = sh

	session, err := runtime.NewSession(
		vos.NewVIOAdapter(&lineInput{shell: sh}, vio.Stdout(), vio.Stderr()),
		sh.jobChanged,
	)
	if err != nil {
		rl.Close()
		toClose.Close()
		return nil, err
	}
	sh.session = session

	if cfg.Motd != "" {
		fmt.Fprintln(sh.stdout, cfg.Motd)
	}
	return sh, nil
}

// Session is the session lines are executed in.
func (s *Shell) Session() *shell.Session {
	return s.session
}

func (s *Shell) jobChanged(job *shell.Job, previous, current shell.JobStatus) {
	switch {
	case current == shell.Suspended,
		current == shell.Done && previous == shell.Background:
		s.notesMu.Lock()
		s.notes = append(s.notes, job.Describe(shell.Line))
		s.notesMu.Unlock()
	}
}

// printNotes shows the job changes since the last prompt.
func (s *Shell) printNotes() {
	s.notesMu.Lock()
	notes := s.notes
	s.notes = nil
	s.notesMu.Unlock()

	for _, note := range notes {
		fmt.Fprintln(s.stderr, note)
	}
}

func (s *Shell) prompt() string {
	return s.session.Env().ExpandEnv(s.runtime.Configuration().Prompt)
}

// Run reads and executes lines until the input ends. It returns the exit
// code of the last line.
func (s *Shell) Run() int {
	stopSignals := s.forwardSignals()
	defer stopSignals()

	var pending []string
	for {
		s.printNotes()
		if len(pending) == 0 {
			s.Readline.SetPrompt(s.prompt())
		} else {
			s.Readline.SetPrompt(ContinuationPrompt)
		}
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return s.session.ExitCode() // Input closed, quit.

		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			pending = nil
			continue

		case err != nil:
			log.Printf("Error readline: %v", err)
			return 1

		case len(pending) == 0 && strings.TrimSpace(line) == "":
			continue // empty line
		}

		pending = append(pending, line)
		script := strings.Join(pending, "\n")
		if incomplete(script) {
			continue
		}
		pending = nil

		if err := s.Readline.SaveHistory(script); err != nil {
			log.Printf("couldn't save history: %v", err)
		}
		s.execute(script)
	}
}

// incomplete reports whether script ends in the middle of a construct.
func incomplete(script string) bool {
	_, err := parser.ParseString(script)
	var eof *scanner.EOFError
	return errors.As(err, &eof)
}

func (s *Shell) execute(script string) {
	value, err := s.session.Execute(script)
	if err != nil {
		if errors.Is(err, shell.ErrSessionClosed) {
			return
		}
		if !shell.IsReported(err) {
			color.New(color.FgRed).Fprintln(s.stderr, s.runtime.FormatError(err))
		}
		return
	}

	if value == nil {
		return
	}
	out := s.session.Format(value, shell.Inspect)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	io.WriteString(s.stdout, out)
}

// forwardSignals sends terminal signals to the foreground job instead of
// the process. It returns a function that restores the default handling.
func (s *Shell) forwardSignals() func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, jobSignals...)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-signals:
				job := s.session.ForegroundJob()
				if job == nil {
					continue
				}
				if sig == os.Interrupt {
					job.Interrupt()
				} else {
					job.Suspend()
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(signals)
		close(done)
	}
}

// Close ends the session and stops recording.
func (s *Shell) Close() error {
	s.runtime.EndSession(s.session)
	s.Readline.Close()
	return s.toClose.Close()
}

// lineInput feeds stages reading the terminal with lines from readline.
type lineInput struct {
	shell *Shell

	mu  sync.Mutex
	buf []byte
}

func (in *lineInput) Read(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.buf) == 0 {
		rl := in.shell.Readline
		rl.SetPrompt("")
		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			if job := in.shell.session.ForegroundJob(); job != nil {
				job.Interrupt()
			}
			return 0, io.EOF
		case err != nil:
			return 0, err
		}
		in.buf = []byte(line + "\n")
	}

	n := copy(p, in.buf)
	in.buf = in.buf[n:]
	return n, nil
}

type fdHolder interface {
	Fd() uintptr
}

func isTerminal(stream interface{}) bool {
	f, ok := stream.(fdHolder)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(stream interface{}) int {
	f, ok := stream.(fdHolder)
	if !ok {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}
