// Package expr evaluates the arithmetic of %(...) substitutions.
//
// Expressions use AWK syntax and run in a sandboxed GoAWK interpreter, so
// comparison, logical, ternary and string concatenation operators work
// along with the AWK numeric functions. Names in the expression are
// resolved through a lookup function before the program runs.
package expr

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/benhoyt/goawk/interp"
	"github.com/benhoyt/goawk/parser"
)

// Lookup resolves a variable referenced by an expression.
type Lookup func(name string) (value string, ok bool)

// Error is returned for expressions that fail to parse or run.
type Error struct {
	Expr string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bad expression %q: %s", e.Expr, e.Msg)
}

var identifier = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// reserved names belong to AWK and are never looked up
var reserved = map[string]bool{}

func init() {
	for _, name := range strings.Fields(`
		BEGIN END function func if else while for do break continue next
		nextfile exit return delete getline print printf in
		length substr index split sub gsub match sprintf sin cos atan2 exp
		log sqrt int rand srand tolower toupper system close fflush
		NR NF FNR FS OFS ORS RS RT FILENAME SUBSEP RSTART RLENGTH CONVFMT
		OFMT ENVIRON ARGC ARGV`) {
		reserved[name] = true
	}
}

// Eval evaluates expression and returns an int, a float64 or, for
// expressions producing text, a string.
func Eval(expression string, lookup Lookup) (interface{}, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, &Error{Expr: expression, Msg: "empty expression"}
	}

	src := `BEGIN { CONVFMT = "%.15g"; printf "%s", (` + expression + `) }`
	prog, err := parser.ParseProgram([]byte(src), nil)
	if err != nil {
		msg := err.Error()
		if pe, ok := err.(*parser.ParseError); ok {
			msg = pe.Message
		}
		return nil, &Error{Expr: expression, Msg: msg}
	}

	var out, errOut bytes.Buffer
	config := &interp.Config{
		Stdin:        strings.NewReader(""),
		Output:       &out,
		Error:        &errOut,
		Args:         []string{},
		NoArgVars:    true,
		Environ:      []string{},
		NoExec:       true,
		NoFileReads:  true,
		NoFileWrites: true,
	}
	if lookup != nil {
		seen := map[string]bool{}
		for _, name := range identifier.FindAllString(expression, -1) {
			if reserved[name] || seen[name] {
				continue
			}
			seen[name] = true
			if value, ok := lookup(name); ok {
				config.Vars = append(config.Vars, name, value)
			}
		}
	}

	if _, err := interp.ExecProgram(prog, config); err != nil {
		return nil, &Error{Expr: expression, Msg: err.Error()}
	}
	return parseResult(out.String()), nil
}

func parseResult(s string) interface{} {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "nN") {
		return f
	}
	return s
}
