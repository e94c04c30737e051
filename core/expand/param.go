package expand

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/josephlewis42/pipesh/core/scanner"
)

const quoteNone = -1

// paramFlags holds the (...) flags of a ${...} expansion and the prefix
// operators that modify it.
type paramFlags struct {
	unique bool

	keepOrder bool
	sortAsc   bool
	sortDesc  bool
	fold      bool
	numeric   bool

	keys   bool
	values bool

	indirect bool

	capitalize bool
	lower      bool
	upper      bool

	global  bool
	splice  bool
	visible bool
	sharp   bool

	quote   int
	unquote bool

	split *string
	join  *string

	// literal disables quoting of substituted values in patterns
	literal bool
	length  bool
}

// paramRef is either a parameter name or a value produced by a nested
// substitution.
type paramRef struct {
	name   string
	isName bool
	value  interface{}
}

// expandVar expands the parameter reference starting on the $.
func (e *expander) expandVar(raw bool) (interface{}, error) {
	line, column := e.Line(), e.Column()

	switch e.Getch() {
	case '{':
		return e.expandBraced(line, column)
	case '(':
		body, err := e.Find(')', '(')
		if err != nil {
			return nil, err
		}
		e.Getch()
		return e.eval.Eval(body)
	}

	start := e.Pos()
	for scanner.IsName(e.Ch()) {
		e.Getch()
	}
	if e.Pos() == start {
		return "$", nil
	}
	e.rawVariable = raw
	return e.eval.Get(e.Slice(start, e.Pos()).String())
}

func (e *expander) expandBraced(line, column int) (interface{}, error) {
	e.Getch()

	f := paramFlags{quote: quoteNone}
	if e.Ch() == '(' {
		if err := e.parseFlags(&f); err != nil {
			return nil, err
		}
	}

	var val interface{}
	if e.Ch() == '+' {
		e.Getch()
		ref, err := e.getName('}')
		if err != nil {
			return nil, err
		}
		name, err := e.lookup(ref)
		if err != nil {
			return nil, err
		}
		if name != nil {
			if val, err = e.eval.Get(Stringify(name)); err != nil {
				return nil, err
			}
		}
	} else {
	prefix:
		for {
			switch e.Ch() {
			case '#':
				f.length = true
			case '=':
				if f.split == nil {
					blank := ""
					f.split = &blank
				}
				f.splice = true
			case '~':
				f.literal = true
			default:
				break prefix
			}
			e.Getch()
		}

		ref, err := e.getName('}')
		if err != nil {
			return nil, err
		}
		if e.Ch() == '(' {
			if err := e.parseFlags(&f); err != nil {
				return nil, err
			}
		}
		if e.Ch() == '}' || e.Ch() == '[' {
			val, err = e.lookup(ref)
		} else {
			val, err = e.applyOperator(ref, &f, line, column)
		}
		if err != nil {
			return nil, err
		}
	}

	for e.Ch() == '[' {
		var err error
		if val, err = e.subscript(val, &f); err != nil {
			return nil, err
		}
	}

	if e.Ch() != '}' {
		return nil, &scanner.SyntaxError{Line: line, Column: column, Msg: "bad substitution"}
	}

	val, err := e.transform(val, &f)
	if err != nil {
		return nil, err
	}
	e.Getch()
	return val, nil
}

func (e *expander) flagError() error {
	return &scanner.SyntaxError{Line: e.Line(), Column: e.Column(), Msg: "error in flags"}
}

// parseFlags reads a (...) flag group starting on the open paren.
func (e *expander) parseFlags(f *paramFlags) error {
	line, column := e.Line(), e.Column()
	escapeDelimited := false

	for e.Getch(); !e.EOT() && e.Ch() != ')'; e.Getch() {
		switch c := e.Ch(); c {
		case 'u':
			f.unique = true
		case 'p':
			escapeDelimited = true
		case 'f':
			newline := "\n"
			f.split = &newline
		case 'F':
			newline := "\n"
			f.join = &newline
		case 's', 'j':
			delim := e.Getch()
			if delim == scanner.EOT {
				return e.flagError()
			}
			start := e.Next()
			for {
				n := e.Getch()
				if n == scanner.EOT {
					return e.flagError()
				}
				if n == delim {
					break
				}
			}
			s := e.Slice(start, e.Pos()).String()
			if escapeDelimited {
				s = ansiEscape(s)
			}
			escapeDelimited = false
			if c == 's' {
				f.split = &s
			} else {
				f.join = &s
			}
		case 'q':
			if f.quote != quoteNone {
				return e.flagError()
			}
			f.quote = quoteBackslash
			if e.Peek() == '-' {
				f.quote = quoteReadable
				e.Getch()
				break
			}
			for e.Peek() == 'q' {
				e.Getch()
				f.quote++
			}
			if f.quote > quotePosix || e.Peek() == '-' {
				return e.flagError()
			}
		case 'Q':
			f.unquote = true
		case '#':
			f.sharp = true
		case 'V':
			f.visible = true
		case 'o':
			f.sortAsc = true
		case 'O':
			f.sortDesc = true
		case 'a':
			f.keepOrder = true
		case 'i':
			f.fold = true
		case 'n':
			f.numeric = true
		case 'P':
			f.indirect = true
		case '@':
			f.splice = true
		case 'G':
			f.global = true
		case 'k':
			f.keys = true
		case 'v':
			f.values = true
		case 'C':
			f.capitalize, f.lower, f.upper = true, false, false
		case 'L':
			f.capitalize, f.lower, f.upper = false, true, false
		case 'U':
			f.capitalize, f.lower, f.upper = false, false, true
		default:
			return &scanner.SyntaxError{Line: e.Line(), Column: e.Column(), Msg: "unsupported flag: " + string(c)}
		}
	}
	if e.EOT() {
		return &scanner.EOFError{Line: line, Column: column, Msg: "unexpected EOT looking for matching )", Missing: ")"}
	}
	e.Getch()
	return nil
}

// getName reads a parameter name up to closing, or expands a nested
// substitution in its place.
func (e *expander) getName(closing rune) (paramRef, error) {
	switch e.Ch() {
	case '"':
		if e.Peek() != '$' {
			return paramRef{}, &scanner.SyntaxError{Line: e.Line(), Column: e.Column(), Msg: "bad substitution"}
		}
		saved := e.inQuote
		e.inQuote = true
		e.Getch()
		ref, err := e.getName(closing)
		e.inQuote = saved
		if err == nil && e.Ch() == '"' {
			e.Getch()
		}
		return ref, err
	case '$':
		val, err := e.expandVar(false)
		return paramRef{value: val}, err
	}

	start := e.Pos()
	for !e.EOT() && e.Ch() != closing && scanner.IsName(e.Ch()) {
		e.Getch()
	}
	if e.EOT() {
		return paramRef{}, &scanner.EOFError{
			Line:    e.Line(),
			Column:  e.Column(),
			Msg:     "unexpected EOT looking for matching " + string(closing),
			Missing: string(closing),
		}
	}
	return paramRef{name: e.Slice(start, e.Pos()).String(), isName: true}, nil
}

func (e *expander) lookup(ref paramRef) (interface{}, error) {
	if !ref.isName {
		return ref.value, nil
	}
	return e.eval.Get(ref.name)
}

// getValue expands the word of an operator like ${name:-word}, stopping on
// the closing brace.
func (e *expander) getValue() (interface{}, error) {
	line, column := e.Line(), e.Column()
	start := e.Pos()
	depth := 0
	var q quoteState
	for ; !e.EOT(); e.Getch() {
		c := e.Ch()
		b := byte('a')
		if c < utf8.RuneSelf {
			b = byte(c)
		}
		if !q.literal(b) {
			continue
		}
		if c == '}' && depth == 0 {
			break
		}
		switch c {
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
		}
	}
	if e.EOT() {
		return nil, &scanner.EOFError{Line: line, Column: column, Msg: "unexpected EOT looking for matching }", Missing: "}"}
	}
	return e.sub(e.Slice(start, e.Pos()), e.inQuote, false).expand()
}

// getPattern expands the pattern of a removal or replacement operator,
// stopping on one of the closing characters.
func (e *expander) getPattern(closing string) (string, error) {
	start := e.Pos()
	end := findUntil(e.Text().String(), start, closing)
	for !e.EOT() && e.Pos() < end {
		e.Getch()
	}
	sub := e.sub(e.Slice(start, end), e.inQuote, false)
	sub.asPattern = true
	val, err := sub.expand()
	if err != nil {
		return "", err
	}
	return Stringify(val), nil
}

// findUntil returns the offset of the first unquoted character of closing
// in text at brace depth zero, or the length of text.
func findUntil(text string, start int, closing string) int {
	depth := 0
	var q quoteState
	for i := start; i < len(text); i++ {
		c := text[i]
		if !q.literal(c) {
			continue
		}
		switch {
		case depth == 0 && strings.IndexByte(closing, c) >= 0:
			return i
		case c == '{':
			depth++
		case c == '}':
			depth--
		}
	}
	return len(text)
}

// unsetOrEmpty is the test of ${x?word}. The other operators only check
// for nil, with or without a colon.
func unsetOrEmpty(v interface{}) bool {
	return v == nil || Stringify(v) == ""
}

func (e *expander) applyOperator(ref paramRef, f *paramFlags, line, column int) (interface{}, error) {
	start := e.Pos()
	for !e.EOT() && e.Ch() != '}' && strings.ContainsRune(":-+=?#%/", e.Ch()) {
		e.Getch()
	}
	op := e.Slice(start, e.Pos()).String()

	switch op {
	case "-", ":-":
		cur, err := e.lookup(ref)
		if err != nil {
			return nil, err
		}
		word, err := e.getValue()
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return word, nil
		}
		return cur, nil

	case "+", ":+":
		cur, err := e.lookup(ref)
		if err != nil {
			return nil, err
		}
		word, err := e.getValue()
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, nil
		}
		return word, nil

	case "=", ":=", "::=":
		if !ref.isName {
			return nil, &scanner.SyntaxError{Line: line, Column: column, Msg: "not an identifier"}
		}
		cur, err := e.eval.Get(ref.name)
		if err != nil {
			return nil, err
		}
		word, err := e.getValue()
		if err != nil {
			return nil, err
		}
		if op == "::=" || cur == nil {
			e.eval.Put(ref.name, word)
			return word, nil
		}
		return cur, nil

	case "?", ":?":
		cur, err := e.lookup(ref)
		if err != nil {
			return nil, err
		}
		var word interface{}
		if e.Ch() != '}' {
			if word, err = e.getValue(); err != nil {
				return nil, err
			}
		}
		if !unsetOrEmpty(cur) {
			return cur, nil
		}
		msg := Stringify(word)
		if msg == "" {
			msg = "parameter not set"
		}
		if ref.isName {
			msg = ref.name + ": " + msg
		}
		return nil, &ArgumentError{Line: line, Column: column, Msg: msg}

	case "#", "##", "%", "%%", "/", "//":
		cur, err := e.lookup(ref)
		if err != nil {
			return nil, err
		}
		closing := "}"
		if op[0] == '/' {
			closing = "/}"
		}
		pattern, err := e.getPattern(closing)
		if err != nil {
			return nil, err
		}
		replacement := ""
		if op[0] == '/' && e.Ch() == '/' {
			e.Getch()
			r, err := e.getValue()
			if err != nil {
				return nil, err
			}
			replacement = Stringify(r)
		}

		fn, err := patternOperator(op, unquoteGlob(pattern), replacement, f.global)
		if err != nil {
			return nil, err
		}
		return stringApply(fn, cur, f), nil
	}

	return nil, &scanner.SyntaxError{Line: line, Column: column, Msg: "bad substitution"}
}

// patternOperator builds the string function for the prefix/suffix removal
// and replacement operators.
func patternOperator(op, glob, replacement string, global bool) (func(string) string, error) {
	if op[0] == '/' {
		if glob == "" {
			return func(s string) string { return s }, nil
		}
		expr, err := GlobToRegexp(glob, false)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		if global || op == "//" {
			return func(s string) string {
				return re.ReplaceAllLiteralString(s, replacement)
			}, nil
		}
		return func(s string) string {
			loc := re.FindStringIndex(s)
			if loc == nil {
				return s
			}
			return s[:loc[0]] + replacement + s[loc[1]:]
		}, nil
	}

	re, err := compileGlob(glob, false, false)
	if err != nil {
		return nil, err
	}
	longest := len(op) == 2
	if op[0] == '#' {
		return func(s string) string {
			cuts := runeOffsets(s)
			if longest {
				reverse(cuts)
			}
			for _, i := range cuts {
				if re.MatchString(s[:i]) {
					return s[i:]
				}
			}
			return s
		}, nil
	}
	return func(s string) string {
		cuts := runeOffsets(s)
		if !longest {
			reverse(cuts)
		}
		for _, i := range cuts {
			if re.MatchString(s[i:]) {
				return s[:i]
			}
		}
		return s
	}, nil
}

// runeOffsets returns every rune boundary of s in increasing order,
// including 0 and len(s).
func runeOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// subscript applies one [...] subscript starting on the open bracket.
func (e *expander) subscript(val interface{}, f *paramFlags) (interface{}, error) {
	line, column := e.Line(), e.Column()
	e.Getch()

	var left, right string
	var negLeft, negRight, hasRight bool
	switch e.Ch() {
	case '*', '@':
		left = string(e.Ch())
		f.splice = f.splice || e.Ch() == '@'
		e.Getch()
	default:
		if e.Ch() == '-' {
			negLeft = true
			e.Getch()
		}
		ref, err := e.getName(']')
		if err != nil {
			return nil, err
		}
		left = subscriptText(ref)
	}
	if e.Ch() == ',' {
		hasRight = true
		if e.Getch() == '-' {
			negRight = true
			e.Getch()
		}
		ref, err := e.getName(']')
		if err != nil {
			return nil, err
		}
		right = subscriptText(ref)
	}
	if e.Ch() != ']' {
		return nil, &scanner.SyntaxError{Line: e.Line(), Column: e.Column(), Msg: "invalid subscript"}
	}
	e.Getch()

	index := func(s string, neg bool, n int) (int, error) {
		i, err := strconv.Atoi(s)
		if err != nil || i < 0 {
			return 0, &ArgumentError{Line: line, Column: column, Msg: "bad subscript: " + s}
		}
		if neg {
			i = n - i
		}
		return i, nil
	}
	outOfRange := func() error {
		return &ArgumentError{Line: line, Column: column, Msg: "subscript out of range"}
	}
	all := left == "*" || left == "@"

	if val == nil {
		return nil, nil
	}

	if _, isMap := MapLen(val); isMap {
		switch {
		case hasRight:
			return nil, nil
		case all:
			return toCollection(val, f.keys, f.values), nil
		default:
			return mapLookup(val, left), nil
		}
	}

	if list, ok := ToList(val); ok {
		if !hasRight {
			if all {
				return ArgList(list), nil
			}
			i, err := index(left, negLeft, len(list))
			if err != nil {
				return nil, err
			}
			if i < 0 || i >= len(list) {
				return nil, outOfRange()
			}
			return list[i], nil
		}
		i, err := index(left, negLeft, len(list))
		if err != nil {
			return nil, err
		}
		j, err := index(right, negRight, len(list))
		if err != nil {
			return nil, err
		}
		if i < 0 || j > len(list) || i > j {
			return nil, outOfRange()
		}
		return list[i:j], nil
	}

	runes := []rune(Stringify(val))
	if !hasRight {
		if all {
			return string(runes), nil
		}
		i, err := index(left, negLeft, len(runes))
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= len(runes) {
			return nil, outOfRange()
		}
		return string(runes[i]), nil
	}
	i, err := index(left, negLeft, len(runes))
	if err != nil {
		return nil, err
	}
	j, err := index(right, negRight, len(runes))
	if err != nil {
		return nil, err
	}
	if i < 0 || j > len(runes) || i > j {
		return nil, outOfRange()
	}
	return string(runes[i:j]), nil
}

func subscriptText(ref paramRef) string {
	if ref.isName {
		return ref.name
	}
	return Stringify(ref.value)
}

// stringApply maps fn over the string forms of a value or its elements.
func stringApply(fn func(string) string, v interface{}, f *paramFlags) interface{} {
	v = toCollection(v, f.keys, f.values)
	if v == nil {
		return nil
	}
	if list, ok := ToList(v); ok {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = fn(Stringify(item))
		}
		return out
	}
	return fn(Stringify(v))
}

// transform applies the flags of a ${...} expansion to its value.
func (e *expander) transform(val interface{}, f *paramFlags) (interface{}, error) {
	if f.indirect && val != nil {
		var err error
		if val, err = e.eval.Get(Stringify(val)); err != nil {
			return nil, err
		}
	}

	if f.keys || f.values {
		val = toCollection(val, f.keys, f.values)
	}

	joinSep := " "
	if f.join != nil {
		joinSep = *f.join
	}

	joined := false
	if e.inQuote && !f.length && !f.splice {
		val = toCollection(val, f.keys, f.values)
		if list, ok := ToList(val); ok {
			val = joinList(list, joinSep)
			joined = true
		}
	}

	if f.sharp {
		val = stringApply(sharp, val, f)
	}

	if f.length {
		if n, ok := MapLen(val); ok {
			val = n
		} else if list, ok := ToList(val); ok {
			val = len(list)
		} else if val == nil {
			val = 0
		} else {
			val = utf8.RuneCountInString(Stringify(val))
		}
	}

	// splitting on blanks keeps the entries of a collection intact
	blankSplit := f.split != nil && *f.split == ""
	if f.join != nil || f.split != nil && !joined && !blankSplit {
		val = toCollection(val, f.keys, f.values)
		if list, ok := ToList(val); ok {
			val = joinList(list, joinSep)
		}
	}

	if f.split != nil {
		val = toCollection(val, f.keys, f.values)
		list, isList := ToList(val)
		if !isList {
			list = []interface{}{val}
		}
		var words []interface{}
		for _, item := range list {
			s := Stringify(item)
			var parts []string
			switch {
			case blankSplit && isList:
				parts = []string{s}
			case blankSplit:
				parts = strings.Fields(s)
			default:
				parts = strings.Split(s, *f.split)
			}
			for _, p := range parts {
				words = append(words, p)
			}
		}
		if words == nil {
			words = []interface{}{}
		}
		val = words
	}

	switch {
	case f.capitalize:
		val = stringApply(capitalize, val, f)
	case f.lower:
		val = stringApply(strings.ToLower, val, f)
	case f.upper:
		val = stringApply(strings.ToUpper, val, f)
	}

	if f.visible {
		val = stringApply(visible, val, f)
	}

	quoted := false
	if f.quote != quoteNone {
		level := f.quote
		val = stringApply(func(s string) string { return quote(s, level) }, val, f)
		quoted = true
		// the rest of the word must not unquote it again
		e.inQuote = true
	} else if f.unquote {
		val = stringApply(Unquote, val, f)
	}

	if f.unique {
		val = toCollection(val, f.keys, f.values)
		if list, ok := ToList(val); ok {
			seen := make(map[string]bool, len(list))
			var out []interface{}
			for _, item := range list {
				key := Stringify(item)
				if !seen[key] {
					seen[key] = true
					out = append(out, item)
				}
			}
			val = out
		}
	}

	if f.keepOrder || f.fold || f.numeric || f.sortAsc || f.sortDesc {
		val = toCollection(val, f.keys, f.values)
		if list, ok := ToList(val); ok {
			val = order(list, f)
		}
	}

	if list, ok := ToList(val); ok {
		out := make([]interface{}, 0, len(list))
		for _, item := range list {
			if s, isString := item.(string); isString && s == "" {
				continue
			}
			out = append(out, item)
		}
		val = out
	}

	inQuote := e.inQuote || quoted
	if e.asPattern && !inQuote && !f.literal {
		val = toCollection(val, f.keys, f.values)
		list, ok := ToList(val)
		if !ok {
			list = []interface{}{val}
		}
		patterns := make([]interface{}, len(list))
		for i, item := range list {
			patterns[i] = quote(Stringify(item), quoteSingle)
		}
		if len(patterns) == 1 {
			val = patterns[0]
		} else {
			val = patterns
		}
	}

	if inQuote {
		val = toCollection(val, f.keys, f.values)
	}
	if list, ok := ToList(val); ok && (f.splice || f.split != nil && !inQuote) {
		val = ArgList(list)
	}
	return val, nil
}

func order(list []interface{}, f *paramFlags) []interface{} {
	var out []interface{}
	switch {
	case f.keepOrder && !f.numeric:
		out = append(out, list...)
	default:
		strs := make([]string, len(list))
		for i, item := range list {
			strs[i] = Stringify(item)
		}
		switch {
		case f.numeric:
			sort.SliceStable(strs, func(i, j int) bool {
				return numericCompare(strs[i], strs[j], f.fold) < 0
			})
		case f.fold:
			sort.SliceStable(strs, func(i, j int) bool {
				return strings.ToLower(strs[i]) < strings.ToLower(strs[j])
			})
		default:
			sort.Strings(strs)
		}
		for _, s := range strs {
			out = append(out, s)
		}
	}
	if f.sortDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}
