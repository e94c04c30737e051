package shell

import (
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/afero"
)

// DefaultShellName prefixes stage diagnostics.
const DefaultShellName = "pipesh"

// Options configures a Processor.
type Options struct {
	// ShellName prefixes stage diagnostics, it defaults to DefaultShellName.
	ShellName string
	// Fs is the filesystem sessions see, it defaults to the host's.
	Fs vos.VFS
	// Dir is the starting directory of new sessions, it defaults to the
	// process working directory.
	Dir string
	// Env seeds the environment of new sessions, nil means os.Environ().
	Env []string
	// ScopePath is the colon separated list of scopes searched for bare
	// command names when a session doesn't set SCOPE.
	ScopePath string
	// NoFormatPipe stops printing the results of commands that aren't at the
	// end of a pipeline into the next stage.
	NoFormatPipe bool
}

// ExecuteListener is notified around every Session.Execute.
type ExecuteListener interface {
	BeforeExecute(session *Session, line string)
	AfterExecute(session *Session, line string, result interface{}, err error)
}

// ExecuteListenerFuncs adapts functions to an ExecuteListener, nil
// functions are skipped.
type ExecuteListenerFuncs struct {
	Before func(session *Session, line string)
	After  func(session *Session, line string, result interface{}, err error)
}

func (l *ExecuteListenerFuncs) BeforeExecute(session *Session, line string) {
	if l.Before != nil {
		l.Before(session, line)
	}
}

func (l *ExecuteListenerFuncs) AfterExecute(session *Session, line string, result interface{}, err error) {
	if l.After != nil {
		l.After(session, line, result, err)
	}
}

type rankedTarget struct {
	target   interface{}
	rank     int
	sequence uint64
}

// commandTable is never modified once published.
type commandTable map[string][]rankedTarget

// Processor is the registry of commands, converters and constants shared by
// all of its sessions.
type Processor struct {
	opts Options

	commands atomic.Pointer[commandTable]
	sequence atomic.Uint64

	mu         sync.Mutex
	converters []Converter
	constants  map[string]interface{}
	listeners  []ExecuteListener
	sessions   map[*Session]struct{}
	stopped    bool
}

// NewProcessor creates an empty processor.
func NewProcessor(opts Options) *Processor {
	if opts.ShellName == "" {
		opts.ShellName = DefaultShellName
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.ScopePath == "" {
		opts.ScopePath = "*"
	}

	p := &Processor{
		opts:      opts,
		constants: make(map[string]interface{}),
		sessions:  make(map[*Session]struct{}),
	}
	p.commands.Store(&commandTable{})
	return p
}

// ShellName returns the name used in diagnostics.
func (p *Processor) ShellName() string {
	return p.opts.ShellName
}

func commandKey(scope, function string) string {
	return strings.ToLower(scope + ":" + function)
}

// updateCommands replaces the command table with a modified copy.
func (p *Processor) updateCommands(update func(commandTable)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := *p.commands.Load()
	next := make(commandTable, len(old))
	for k, v := range old {
		next[k] = v
	}
	update(next)
	p.commands.Store(&next)
}

// AddCommand registers target as scope:function with the given rank. A
// target that is already registered under the key gets its rank replaced.
// Targets that don't implement Function are called through their methods.
func (p *Processor) AddCommand(scope string, target interface{}, function string, rank int) {
	key := commandKey(scope, function)
	seq := p.sequence.Add(1)

	p.updateCommands(func(table commandTable) {
		var entries []rankedTarget
		for _, e := range table[key] {
			if !sameTarget(e.target, target) {
				entries = append(entries, e)
			}
		}
		table[key] = append(entries, rankedTarget{target: target, rank: rank, sequence: seq})
	})
}

// AddFunction registers fn as scope:name with rank 0, replacing a function
// added earlier under the same key.
func (p *Processor) AddFunction(scope, name string, fn FunctionFunc) {
	p.AddCommand(scope, fn, name, 0)
}

// AddCommands registers every exported method of target under scope.
func (p *Processor) AddCommands(scope string, target interface{}) {
	t := reflect.TypeOf(target)
	for i := 0; i < t.NumMethod(); i++ {
		p.AddCommand(scope, target, strings.ToLower(t.Method(i).Name), 0)
	}
}

// RemoveCommand unregisters target from scope:function, a nil target
// removes every registration of the key.
func (p *Processor) RemoveCommand(scope, function string, target interface{}) {
	key := commandKey(scope, function)
	p.updateCommands(func(table commandTable) {
		if target == nil {
			delete(table, key)
			return
		}

		var entries []rankedTarget
		for _, e := range table[key] {
			if !sameTarget(e.target, target) {
				entries = append(entries, e)
			}
		}
		if len(entries) == 0 {
			delete(table, key)
		} else {
			table[key] = entries
		}
	})
}

// GetCommand resolves a scope:name reference. A * scope searches the
// colon separated scopePath in order. The highest ranked target wins and
// ties go to the most recent registration. It returns nil if nothing
// matches.
func (p *Processor) GetCommand(name, scopePath string) Function {
	scope, function, ok := strings.Cut(name, ":")
	if !ok {
		return nil
	}
	function = strings.ToLower(function)
	table := *p.commands.Load()

	var candidates []rankedTarget
	if scope == "*" {
		if scopePath == "" {
			scopePath = p.opts.ScopePath
		}
		for _, s := range strings.Split(scopePath, ":") {
			if s == "*" {
				candidates = firstBySuffix(table, ":"+function)
			} else {
				candidates = table[commandKey(s, function)]
			}
			if len(candidates) > 0 {
				break
			}
		}
	} else {
		candidates = table[commandKey(scope, function)]
	}

	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.rank > best.rank || c.rank == best.rank && c.sequence > best.sequence {
			best = c
		}
	}

	if fn, ok := best.target.(Function); ok {
		return fn
	}
	return &methodProxy{target: best.target, name: function}
}

// firstBySuffix returns the entries of the earliest registered key ending
// in suffix.
func firstBySuffix(table commandTable, suffix string) []rankedTarget {
	var (
		found []rankedTarget
		first uint64
	)
	for key, entries := range table {
		if !strings.HasSuffix(key, suffix) || len(entries) == 0 {
			continue
		}
		seq := entries[0].sequence
		for _, e := range entries {
			if e.sequence < seq {
				seq = e.sequence
			}
		}
		if found == nil || seq < first {
			found, first = entries, seq
		}
	}
	return found
}

// Commands returns the registered scope:name keys in order.
func (p *Processor) Commands() []string {
	table := *p.commands.Load()
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AddConverter adds a formatter consulted before the built in rules.
func (p *Processor) AddConverter(c Converter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.converters = append(append([]Converter(nil), p.converters...), c)
}

func (p *Processor) converterList() []Converter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.converters
}

// AddConstant defines a value that shadows session variables of the same
// name. A nil value removes the constant.
func (p *Processor) AddConstant(name string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if value == nil {
		delete(p.constants, name)
		return
	}
	p.constants[name] = value
}

func (p *Processor) constant(name string) (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.constants[name]
	return v, ok
}

func (p *Processor) constantNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.constants))
	for k := range p.constants {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AddListener registers a listener for every session's Execute calls.
func (p *Processor) AddListener(l ExecuteListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(append([]ExecuteListener(nil), p.listeners...), l)
}

// RemoveListener unregisters l.
func (p *Processor) RemoveListener(l ExecuteListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ExecuteListener
	for _, existing := range p.listeners {
		if existing != l {
			out = append(out, existing)
		}
	}
	p.listeners = out
}

func (p *Processor) beforeExecute(s *Session, line string) {
	p.mu.Lock()
	listeners := p.listeners
	p.mu.Unlock()

	for _, l := range listeners {
		safeNotify(func() { l.BeforeExecute(s, line) })
	}
}

func (p *Processor) afterExecute(s *Session, line string, result interface{}, err error) {
	p.mu.Lock()
	listeners := p.listeners
	p.mu.Unlock()

	for _, l := range listeners {
		safeNotify(func() { l.AfterExecute(s, line, result, err) })
	}
}

// safeNotify calls fn, a panicking listener must not break execution.
func safeNotify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("execute listener failed: %v", r)
		}
	}()
	fn()
}

// CreateSession starts a session reading in and writing to out and err.
func (p *Processor) CreateSession(in io.Reader, out, err io.Writer) (*Session, error) {
	dir := p.opts.Dir
	if dir == "" {
		wd, werr := os.Getwd()
		if werr != nil {
			return nil, werr
		}
		dir = wd
	}

	env := p.opts.Env
	if env == nil {
		env = os.Environ()
	}

	s := newSession(p, vos.NewTerminal(in, out, err), dir, vos.NewMapEnvFromEnvList(env))
	if !s.processor.track(s) {
		return nil, ErrProcessorStopped
	}
	return s, nil
}

// CreateChildSession starts a session sharing the parent's streams,
// directory and environment.
func (p *Processor) CreateChildSession(parent *Session) (*Session, error) {
	if parent == nil || parent.processor != p || !p.isTracked(parent) {
		return nil, fmt.Errorf("parent session is not live: %w", ErrSessionClosed)
	}

	s := newSession(p, parent.terminal, parent.CurrentDir(), parent.env.Clone())
	if !p.track(s) {
		return nil, ErrProcessorStopped
	}
	return s, nil
}

func (p *Processor) track(s *Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.sessions[s] = struct{}{}
	return true
}

func (p *Processor) isTracked(s *Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[s]
	return ok && !s.closed.Load()
}

func (p *Processor) untrack(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, s)
}

// Sessions returns the number of live sessions.
func (p *Processor) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Stop closes every session and clears the registry. No sessions can be
// created afterwards.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.stopped = true
	live := make([]*Session, 0, len(p.sessions))
	for s := range p.sessions {
		live = append(live, s)
	}
	p.mu.Unlock()

	for _, s := range live {
		s.Close()
	}

	p.mu.Lock()
	p.converters = nil
	p.constants = make(map[string]interface{})
	p.listeners = nil
	p.commands.Store(&commandTable{})
	p.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (p *Processor) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func newSessionID() string {
	return uuid.NewString()
}

// sameTarget compares registrations without panicking on uncomparable
// values. Funcs can't be told apart, so a key holds at most one func of
// each type.
func sameTarget(a, b interface{}) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return !va.IsValid() && !vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Func:
		return true
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}
