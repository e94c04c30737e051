// Package expand implements word expansion: quoting, parameter and
// command substitution, arithmetic, brace expansion and filename
// generation.
package expand

import (
	"strings"

	"github.com/josephlewis42/pipesh/core/scanner"
	"github.com/spf13/afero"
)

// Evaluator supplies the values expansion needs from a session.
type Evaluator interface {
	// Get returns the value bound to name, or nil if it isn't set.
	Get(name string) (interface{}, error)
	// Put binds name to value. A nil value removes the binding.
	Put(name string, value interface{})
	// Eval runs program and returns its result, used for $(...).
	Eval(program scanner.Token) (interface{}, error)
	// Expr evaluates an arithmetic expression, used for %(...).
	Expr(expr scanner.Token) (interface{}, error)
	// CurrentDir returns the directory globs are resolved against. An
	// empty string turns filename generation off.
	CurrentDir() string
	// Fs is the filesystem globs are matched against.
	Fs() afero.Fs
}

type expander struct {
	*scanner.Scanner
	eval Evaluator

	inQuote bool
	glob    bool
	unquote bool
	// asPattern quotes substituted values so they match literally
	asPattern bool
	// rawVariable is set when the whole word was a bare $name
	rawVariable bool
}

// Expand expands word, removing quotes and generating filenames. The
// result is a string, the raw value of a lone $name, an ArgList when the
// word expanded to several words, or nil.
func Expand(word scanner.Token, eval Evaluator) (interface{}, error) {
	e := &expander{
		Scanner: scanner.New(word),
		eval:    eval,
		glob:    true,
		unquote: true,
	}
	return e.expand()
}

// ExpandString expands a word that isn't part of a larger source text.
func ExpandString(word string, eval Evaluator) (interface{}, error) {
	return Expand(scanner.NewToken(word), eval)
}

func (e *expander) sub(word scanner.Token, inQuote, glob bool) *expander {
	return &expander{
		Scanner: scanner.New(word),
		eval:    e.eval,
		inQuote: inQuote,
		glob:    glob,
	}
}

func (e *expander) expand() (interface{}, error) {
	expanded, err := e.doExpand()
	if err != nil {
		return nil, err
	}
	if e.rawVariable {
		return expanded, nil
	}

	items, ok := ToList(expanded)
	if !ok {
		items = []interface{}{expanded}
	}

	var args []interface{}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			args = append(args, item)
			continue
		}

		words := []string{s}
		if !e.inQuote && !e.asPattern {
			words = ExpandBraces(s)
		}
		for _, word := range words {
			names := []string{word}
			if e.glob {
				if names, err = e.generateFileNames(word); err != nil {
					return nil, err
				}
			}
			for _, name := range names {
				if e.unquote && !e.inQuote {
					name = Unquote(name)
				}
				args = append(args, name)
			}
		}
	}

	if len(args) == 1 {
		return args[0], nil
	}
	if _, isList := ToList(expanded); !isList && len(args) > 1 {
		// a single word split by braces or globbing
		return ArgList(args), nil
	}
	if _, isArgs := expanded.(ArgList); isArgs {
		return ArgList(args), nil
	}
	if args == nil {
		args = []interface{}{}
	}
	return args, nil
}

func (e *expander) doExpand() (interface{}, error) {
	text := e.Text().String()
	if !strings.ContainsAny(text, `%$\"'`) {
		return text, nil
	}

	var buf strings.Builder
	for !e.EOT() {
		start := e.Pos()
		switch e.Ch() {
		case '%':
			if e.Peek() != '(' {
				buf.WriteRune(e.Ch())
				e.Getch()
				continue
			}
			val, err := e.expandExpr()
			if err != nil {
				return nil, err
			}
			if e.EOT() && buf.Len() == 0 {
				return val, nil
			}
			buf.WriteString(Stringify(val))

		case '$':
			if e.Peek() == '\'' {
				e.Getch()
				if err := e.SkipQuote(); err != nil {
					return nil, err
				}
				value := e.Slice(start+2, e.Pos()).String()
				e.Getch()
				buf.WriteString(quote(ansiEscape(value), quoteSingle))
				continue
			}

			val, err := e.expandVar(true)
			if err != nil {
				return nil, err
			}
			if e.EOT() && buf.Len() == 0 {
				return val, nil
			}
			e.rawVariable = false
			buf.WriteString(Stringify(val))

		case '\\':
			buf.WriteRune(e.Ch())
			if e.Peek() != scanner.EOT {
				buf.WriteRune(e.Getch())
			}
			e.Getch()

		case '"':
			if err := e.SkipQuote(); err != nil {
				return nil, err
			}
			value := e.Slice(start+1, e.Pos())
			e.Getch()
			expanded, err := e.sub(value, true, true).expand()
			if err != nil {
				return nil, err
			}

			list, isList := ToList(expanded)
			if e.EOT() && buf.Len() == 0 {
				if args, ok := expanded.(ArgList); ok {
					out := make(ArgList, len(args))
					for i, arg := range args {
						out[i] = `"` + Stringify(arg) + `"`
					}
					return out, nil
				}
				if expanded == nil {
					return "", nil
				}
			}
			buf.WriteByte('"')
			if isList {
				buf.WriteString(joinList(list, " "))
			} else {
				buf.WriteString(Stringify(expanded))
			}
			buf.WriteByte('"')

		case '\'':
			if e.inQuote {
				buf.WriteRune(e.Ch())
				e.Getch()
				continue
			}
			if err := e.SkipQuote(); err != nil {
				return nil, err
			}
			value := e.Slice(start, e.Next()).String()
			e.Getch()
			buf.WriteString(value)

		default:
			buf.WriteRune(e.Ch())
			e.Getch()
		}
	}

	return buf.String(), nil
}

// expandExpr evaluates %(...) starting on the %.
func (e *expander) expandExpr() (interface{}, error) {
	e.Getch()
	body, err := e.Group()
	if err != nil {
		return nil, err
	}
	e.Getch()
	return e.eval.Expr(body)
}
