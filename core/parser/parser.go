// Package parser turns command text into programs of pipelines of
// statements for the shell to run.
//
//	program   := pipeline { (";" | "\n" | "&&" | "||" | "&") pipeline }
//	pipeline  := statement { ("|" | "|&") statement }
//	statement := { word | redirection }
//
// Words are kept as unexpanded tokens; expansion happens when a statement
// runs.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/josephlewis42/pipesh/core/expand"
	"github.com/josephlewis42/pipesh/core/scanner"
)

// Program is a list of pipelines joined by operators.
type Program struct {
	Text  scanner.Token
	Steps []Step
}

// Step is one pipeline of a program and the operator that follows it.
type Step struct {
	Pipeline *Pipeline
	// Op is one of ";", "\n", "&&", "||", "&" or "" after the last step.
	Op string
}

// Pipeline is a chain of statements connected by pipes.
type Pipeline struct {
	Text       scanner.Token
	Statements []*Statement
	// Pipes[i] joins Statements[i] to Statements[i+1] and is "|" or "|&".
	Pipes []string
}

// Statement is a command with its arguments and redirections.
type Statement struct {
	Text         scanner.Token
	Words        []*Word
	Redirections []*Redirection
}

func (s *Statement) String() string {
	return s.Text.String()
}

// Redirection is an operator like 2>>, &> or <<< and its target.
type Redirection struct {
	Op scanner.Token
	// Target is the file, word or here-document body. It is nil for
	// descriptor duplication like 2>&1.
	Target *Word
	// Delimiter is the end marker of a << here-document.
	Delimiter string
}

// IsHereDoc reports whether the redirection is a << or <<- here-document.
func (r *Redirection) IsHereDoc() bool {
	op := r.Op.String()
	return op == "<<" || op == "<<-"
}

// WordKind tells how a word is evaluated.
type WordKind int

const (
	// Plain words are expanded.
	Plain WordKind = iota
	// Closure words, { ... }, evaluate to a callable program.
	Closure
	// Sequence words, ( ... ), run their program and yield its result.
	Sequence
	// Array words, [a b] or [k=v], evaluate to a list or a map.
	Array
)

// Word is one argument of a statement.
type Word struct {
	scanner.Token
	Kind WordKind

	// Program is set for closures and sequences.
	Program *Program

	// List is set for list arrays, Keys and Values for map arrays.
	List   []*Word
	Keys   []*Word
	Values []*Word
}

var redirectOp = regexp.MustCompile(`^(?:[0-9]?>&[0-9]|&>>?|[0-9]?>>?|<<<|<<-?|[0-9]?<>?)`)

type parser struct {
	*scanner.Scanner
	pending []*Redirection
}

// Parse parses text as a program.
func Parse(text scanner.Token) (*Program, error) {
	p := &parser{Scanner: scanner.New(text)}
	prog, err := p.program()
	if err != nil {
		return nil, err
	}
	if !p.EOT() {
		return nil, p.unexpected()
	}
	return prog, nil
}

// ParseString parses a program that isn't part of a larger text.
func ParseString(text string) (*Program, error) {
	return Parse(scanner.NewToken(text))
}

func (p *parser) unexpected() error {
	return &scanner.SyntaxError{Line: p.Line(), Column: p.Column(), Msg: fmt.Sprintf("unexpected %q", p.Ch())}
}

func (p *parser) program() (*Program, error) {
	prog := &Program{Text: p.Text()}
	op := ""
	for {
		if err := p.SkipSpace(true); err != nil {
			return nil, err
		}
		for p.Ch() == ';' && op != "&&" && op != "||" {
			p.Getch()
			if err := p.SkipSpace(true); err != nil {
				return nil, err
			}
		}
		if p.EOT() {
			if op == "&&" || op == "||" {
				return nil, &scanner.SyntaxError{Line: p.Line(), Column: p.Column(), Msg: "missing command after " + op}
			}
			break
		}

		pl, err := p.pipeline()
		if err != nil {
			return nil, err
		}
		if pl == nil {
			return nil, p.unexpected()
		}

		op, err = p.operator()
		if err != nil {
			return nil, err
		}
		prog.Steps = append(prog.Steps, Step{Pipeline: pl, Op: op})
		if op == "" {
			break
		}
	}

	if len(p.pending) > 0 {
		r := p.pending[0]
		return nil, &scanner.EOFError{
			Line:    r.Op.Line(),
			Column:  r.Op.Column(),
			Msg:     "unexpected EOT looking for here-document delimiter " + r.Delimiter,
			Missing: r.Delimiter,
		}
	}
	return prog, nil
}

func (p *parser) operator() (string, error) {
	if err := p.SkipSpace(false); err != nil {
		return "", err
	}
	switch p.Ch() {
	case ';':
		p.Getch()
		return ";", nil
	case '\r':
		if p.Peek() != '\n' {
			return "", nil
		}
		p.Getch()
		fallthrough
	case '\n':
		p.Getch()
		return "\n", p.readHereDocs()
	case '&':
		p.Getch()
		if p.Ch() == '&' {
			p.Getch()
			return "&&", nil
		}
		return "&", nil
	case '|':
		if p.Peek() == '|' {
			p.Getch()
			p.Getch()
			return "||", nil
		}
	}
	return "", nil
}

// readHereDocs reads the bodies of here-documents opened on the line that
// just ended.
func (p *parser) readHereDocs() error {
	for _, r := range p.pending {
		bodyStart := p.Pos()
		for {
			if p.EOT() {
				return &scanner.EOFError{
					Line:    r.Op.Line(),
					Column:  r.Op.Column(),
					Msg:     "unexpected EOT looking for here-document delimiter " + r.Delimiter,
					Missing: r.Delimiter,
				}
			}
			lineStart := p.Pos()
			for !p.EOT() && p.Ch() != '\n' {
				p.Getch()
			}
			line := strings.TrimSuffix(p.Slice(lineStart, p.Pos()).String(), "\r")
			if r.Op.String() == "<<-" {
				line = strings.TrimLeft(line, "\t")
			}
			p.Getch()
			if line == r.Delimiter {
				r.Target = &Word{Token: p.Slice(bodyStart, lineStart)}
				break
			}
		}
	}
	p.pending = nil
	return nil
}

func (p *parser) pipeline() (*Pipeline, error) {
	pl := &Pipeline{}
	for {
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		if len(st.Words) == 0 && len(st.Redirections) == 0 {
			if len(pl.Statements) > 0 {
				return nil, &scanner.SyntaxError{Line: p.Line(), Column: p.Column(), Msg: "missing command after " + pl.Pipes[len(pl.Pipes)-1]}
			}
			return nil, nil
		}
		pl.Statements = append(pl.Statements, st)

		if p.Ch() != '|' || p.Peek() == '|' {
			break
		}
		op := "|"
		if p.Getch() == '&' {
			op = "|&"
			p.Getch()
		}
		pl.Pipes = append(pl.Pipes, op)
		if err := p.SkipSpace(true); err != nil {
			return nil, err
		}
	}

	first, last := pl.Statements[0].Text, pl.Statements[len(pl.Statements)-1].Text
	base := p.Text().Start()
	pl.Text = p.Slice(first.Start()-base, last.Start()+last.Len()-base)
	return pl, nil
}

func (p *parser) atStatementEnd() bool {
	switch p.Ch() {
	case scanner.EOT, '\n', ';', '|', ')':
		return true
	case '\r':
		return p.Peek() == '\n'
	case '&':
		return p.Peek() != '>'
	}
	return false
}

func (p *parser) statement() (*Statement, error) {
	st := &Statement{}
	start, end := -1, -1
	for {
		if err := p.SkipSpace(false); err != nil {
			return nil, err
		}
		if p.atStatementEnd() {
			break
		}

		begin := p.Pos()
		if m := redirectOp.FindString(p.Text().String()[begin:]); m != "" {
			r, err := p.redirection(len(m))
			if err != nil {
				return nil, err
			}
			st.Redirections = append(st.Redirections, r)
		} else {
			w, err := p.word()
			if err != nil {
				return nil, err
			}
			st.Words = append(st.Words, w)
		}
		if start < 0 {
			start = begin
		}
		end = p.Pos()
	}
	if start >= 0 {
		st.Text = p.Slice(start, end)
	}
	return st, nil
}

func (p *parser) redirection(n int) (*Redirection, error) {
	begin := p.Pos()
	for i := 0; i < n; i++ {
		p.Getch()
	}
	r := &Redirection{Op: p.Slice(begin, p.Pos())}
	if strings.Contains(r.Op.String(), ">&") {
		return r, nil
	}

	if err := p.SkipSpace(false); err != nil {
		return nil, err
	}
	if p.atStatementEnd() || redirectOp.MatchString(p.Text().String()[p.Pos():]) {
		return nil, &scanner.SyntaxError{Line: r.Op.Line(), Column: r.Op.Column(), Msg: "missing target for " + r.Op.String()}
	}
	target, err := p.word()
	if err != nil {
		return nil, err
	}
	if r.IsHereDoc() {
		r.Delimiter = expand.Unquote(target.String())
		p.pending = append(p.pending, r)
		return r, nil
	}
	r.Target = target
	return r, nil
}

func (p *parser) word() (*Word, error) {
	start := p.Pos()
	switch p.Ch() {
	case '{':
		if next := p.Peek(); scanner.IsBlank(next) || next == '\n' || next == '\r' {
			return p.subProgram('}', '{', Closure, start)
		}
	case '(':
		return p.subProgram(')', '(', Sequence, start)
	case '[':
		saved := *p.Scanner
		body, err := p.Find(']', '[')
		if err == nil {
			p.Getch()
			if p.atWordEnd() {
				return p.array(body, p.Slice(start, p.Pos()))
			}
		}
		*p.Scanner = saved
	}

	for !p.atWordEnd() {
		switch p.Ch() {
		case '\\':
			if p.Getch() == scanner.EOT {
				return nil, &scanner.EOFError{Line: p.Line(), Column: p.Column(), Msg: "unexpected EOT in \\ escape", Missing: " "}
			}
			p.Getch()
		case '\'', '"':
			if err := p.SkipQuote(); err != nil {
				return nil, err
			}
			p.Getch()
		case '$':
			if next := p.Peek(); next == '{' || next == '(' {
				p.Getch()
				if _, err := p.Group(); err != nil {
					return nil, err
				}
			} else if next == '\'' {
				p.Getch()
				if err := p.SkipQuote(); err != nil {
					return nil, err
				}
			}
			p.Getch()
		case '%':
			if p.Peek() == '(' {
				p.Getch()
				if _, err := p.Group(); err != nil {
					return nil, err
				}
			}
			p.Getch()
		case '{', '(', '[':
			saved := *p.Scanner
			if _, err := p.Group(); err != nil {
				*p.Scanner = saved
			}
			p.Getch()
		default:
			p.Getch()
		}
	}
	return &Word{Token: p.Slice(start, p.Pos())}, nil
}

func (p *parser) atWordEnd() bool {
	switch c := p.Ch(); c {
	case scanner.EOT, '\n', ';', '|', '&', '<', '>', ')':
		return true
	case '\r':
		return p.Peek() == '\n'
	default:
		return scanner.IsBlank(c)
	}
}

// subProgram parses a bracketed sub-program word.
func (p *parser) subProgram(closing, opening rune, kind WordKind, start int) (*Word, error) {
	body, err := p.Find(closing, opening)
	if err != nil {
		return nil, err
	}
	p.Getch()
	prog, err := Parse(body)
	if err != nil {
		return nil, err
	}
	return &Word{Token: p.Slice(start, p.Pos()), Kind: kind, Program: prog}, nil
}

// array parses the body of [a b c] or [k=v k2=v2].
func (p *parser) array(body, text scanner.Token) (*Word, error) {
	w := &Word{Token: text, Kind: Array}
	sub := &parser{Scanner: scanner.New(body)}
	isMap := false
	for i := 0; ; i++ {
		if err := sub.SkipSpace(true); err != nil {
			return nil, err
		}
		if sub.EOT() {
			break
		}
		if sub.atWordEnd() {
			return nil, sub.unexpected()
		}
		item, err := sub.word()
		if err != nil {
			return nil, err
		}

		eq := pairSeparator(item.Token)
		if i == 0 {
			isMap = eq >= 0
		}
		switch {
		case isMap && eq >= 0:
			w.Keys = append(w.Keys, &Word{Token: item.Token.Sub(0, eq)})
			value, err := Parse(item.Token.Sub(eq+1, item.Len()))
			if err != nil {
				return nil, err
			}
			w.Values = append(w.Values, valueWord(item.Token.Sub(eq+1, item.Len()), value))
		case isMap || eq >= 0 && item.Kind == Plain:
			return nil, &scanner.SyntaxError{Line: item.Line(), Column: item.Column(), Msg: "mixed list and map in array"}
		default:
			w.List = append(w.List, item)
		}
	}
	if isMap {
		w.List = nil
	} else if w.List == nil {
		w.List = []*Word{}
	}
	return w, nil
}

// valueWord returns the single word a map value parses to, falling back to
// a plain word.
func valueWord(text scanner.Token, prog *Program) *Word {
	if len(prog.Steps) == 1 {
		sts := prog.Steps[0].Pipeline.Statements
		if len(sts) == 1 && len(sts[0].Words) == 1 && len(sts[0].Redirections) == 0 {
			return sts[0].Words[0]
		}
	}
	return &Word{Token: text}
}

// pairSeparator returns the offset of the first unquoted top level = in a
// plain word, or -1.
func pairSeparator(t scanner.Token) int {
	s := t.String()
	depth := 0
	var single, double, escaped bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case single:
			single = c != '\''
		case double:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				double = false
			}
		case c == '\\':
			escaped = true
		case c == '\'':
			single = true
		case c == '"':
			double = true
		case c == '{' || c == '(' || c == '[':
			depth++
		case c == '}' || c == ')' || c == ']':
			depth--
		case c == '=' && depth == 0 && i > 0:
			return i
		}
	}
	return -1
}
