package shell

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type host struct {
	Name  string
	Port  int
	Tags  []string
	notes string
}

type opaque struct {
	secret int
}

func TestSession_Format(t *testing.T) {
	cases := map[string]struct {
		value interface{}
		level int
		want  string
	}{
		"nil":               {value: nil, level: Inspect, want: "null"},
		"string":            {value: "text", level: Inspect, want: "text"},
		"int":               {value: 42, level: Line, want: "42"},
		"bool":              {value: true, level: Part, want: "true"},
		"primitive slice":   {value: []int{1, 2, 3}, level: Inspect, want: "[1, 2, 3]"},
		"bytes":             {value: []byte{1, 2}, level: Line, want: "[1, 2]"},
		"list inspect":      {value: []interface{}{"a", 1, nil}, level: Inspect, want: "a\n1\nnull\n"},
		"list line":         {value: []interface{}{"a", 1, nil}, level: Line, want: "[a, 1, null]"},
		"nested list":       {value: []interface{}{"a", []string{"b", "c"}}, level: Line, want: "[a, [b, c]]"},
		"list of lists":     {value: []interface{}{[]interface{}{"x"}}, level: Inspect, want: "[x]\n"},
		"map inspect":       {value: map[string]interface{}{"b": 2, "a": "one"}, level: Inspect, want: "a                   one\nb                   2\n"},
		"map line":          {value: map[string]interface{}{"b": 2, "a": "one"}, level: Line, want: "[a=one, b=2]"},
		"error":             {value: errors.New("broken"), level: Inspect, want: "broken"},
		"struct inspect":    {value: host{Name: "db", Port: 5432, Tags: []string{"x"}, notes: "hidden"}, level: Inspect, want: "Name                 db\nPort                 5432\nTags                 [x]\n"},
		"struct pointer":    {value: &host{Name: "db"}, level: Inspect, want: "Name                 db\nPort                 0\nTags                 []\n"},
		"struct line":       {value: opaque{secret: 1}, level: Line, want: "{1}"},
		"no exported field": {value: opaque{secret: 1}, level: Inspect, want: "{1}"},
	}

	env := newTestEnv(t, "")
	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.want, env.session.Format(tc.value, tc.level))
		})
	}
}

func TestSession_FormatConverters(t *testing.T) {
	env := newTestEnv(t, "")
	env.proc.AddConverter(ConverterFunc(func(value interface{}, level int, s *Session) (string, bool) {
		if h, ok := value.(host); ok {
			return fmt.Sprintf("%s:%d", h.Name, h.Port), true
		}
		return "", false
	}))

	assert.Equal(t, "db:5432", env.session.Format(host{Name: "db", Port: 5432}, Inspect))
	assert.Equal(t, "[db:1, web:2]", env.session.Format([]interface{}{host{Name: "db", Port: 1}, host{Name: "web", Port: 2}}, Line))
	assert.Equal(t, "7", env.session.Format(7, Inspect), "other values use the built in rules")
}

func ExampleSession_Format() {
	proc := NewProcessor(Options{Dir: "/"})
	session, _ := proc.CreateSession(nil, nil, nil)
	defer proc.Stop()

	fmt.Println(session.Format([]interface{}{"a", []interface{}{1, 2}}, Line))
	fmt.Print(session.Format(map[string]interface{}{"user": "root"}, Inspect))
	// Output:
	// [a, [1, 2]]
	// user                root
}
