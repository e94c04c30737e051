package expand

import (
	"regexp"
	"strconv"
	"unicode/utf8"
)

var braceRange = regexp.MustCompile(`^\{(?:(?P<start>-?[0-9]+)\.\.(?P<end>-?[0-9]+)(?:\.\.(?P<step>-?0*[1-9][0-9]*))?|(?P<from>\S)\.\.(?P<to>\S))\}$`)

// ExpandBraces expands unquoted brace groups in a word: {a,b,c} lists,
// {1..10..2} integer ranges and {a..e} character ranges. Groups expand
// left to right, so x{a,b}{1,2} gives xa1 xa2 xb1 xb2. A word without a
// group is returned unchanged.
func ExpandBraces(word string) []string {
	parts := splitBraceGroups(word)
	if parts == nil {
		return []string{word}
	}

	generated := []string{""}
	for _, part := range parts {
		generators := braceGenerators(part)
		next := make([]string, 0, len(generated)*len(generators))
		for _, prefix := range generated {
			for _, g := range generators {
				next = append(next, prefix+g)
			}
		}
		generated = next
	}
	return generated
}

// splitBraceGroups cuts a word into literal runs and top level brace groups.
// It returns nil when the word has no complete group.
func splitBraceGroups(word string) []string {
	var parts []string
	var q quoteState
	depth, start := 0, 0
	found := false
	for i := 0; i < len(word); i++ {
		c := word[i]
		if !q.literal(c) {
			continue
		}
		switch c {
		case '{':
			if depth == 0 {
				if i > start {
					parts = append(parts, word[start:i])
				}
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				parts = append(parts, word[start:i+1])
				start = i + 1
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	if start < len(word) {
		parts = append(parts, word[start:])
	}
	return parts
}

func braceGenerators(part string) []string {
	if m := braceRange.FindStringSubmatch(part); m != nil {
		group := func(name string) string {
			return m[braceRange.SubexpIndex(name)]
		}
		if group("start") != "" {
			start, err1 := strconv.Atoi(group("start"))
			end, err2 := strconv.Atoi(group("end"))
			step := 1
			var err3 error
			if s := group("step"); s != "" {
				step, err3 = strconv.Atoi(s)
			}
			if err1 == nil && err2 == nil && err3 == nil {
				return intRange(start, end, step)
			}
			return []string{part}
		}
		from, _ := utf8.DecodeRuneInString(group("from"))
		to, _ := utf8.DecodeRuneInString(group("to"))
		var out []string
		if from <= to {
			for r := from; r <= to; r++ {
				out = append(out, string(r))
			}
		} else {
			for r := from; r >= to; r-- {
				out = append(out, string(r))
			}
		}
		return out
	}

	if len(part) < 2 || part[0] != '{' || part[len(part)-1] != '}' {
		return []string{part}
	}

	// Split the group on top level commas, expanding nested groups.
	var items []string
	var q quoteState
	depth, start := 0, 1
	for i := 1; i < len(part)-1; i++ {
		c := part[i]
		if !q.literal(c) {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				items = append(items, part[start:i])
				start = i + 1
			}
		}
	}
	if items == nil {
		return []string{part}
	}
	items = append(items, part[start:len(part)-1])

	var out []string
	for _, item := range items {
		out = append(out, ExpandBraces(item)...)
	}
	return out
}

func intRange(start, end, step int) []string {
	if step < 0 {
		start, end = end, start
		step = -step
	}
	var out []string
	if start <= end {
		for k := start; k <= end; k += step {
			out = append(out, strconv.Itoa(k))
		}
	} else {
		for k := start; k >= end; k -= step {
			out = append(out, strconv.Itoa(k))
		}
	}
	return out
}
