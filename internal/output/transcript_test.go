package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscript_WriteLine(t *testing.T) {
	tr := NewTranscript(0)
	tr.WriteLine("hello", false)
	tr.WriteLine("boom", true)
	tr.WriteLine("two\nlines\n", false)

	assert.Equal(t, []Record{
		{Text: "hello"},
		{Text: "boom", IsError: true},
		{Text: "two"},
		{Text: "lines"},
	}, tr.Records())
}

func TestTranscript_Fragments(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      []Record
	}{
		{
			name:      "one line split across reads",
			fragments: []string{"hel", "lo wor", "ld\n"},
			want:      []Record{{Text: "hello world"}},
		},
		{
			name:      "open tail",
			fragments: []string{"line one\nprom", "pt$ "},
			want:      []Record{{Text: "line one"}, {Text: "prompt$ ", Open: true}},
		},
		{
			name:      "blank line",
			fragments: []string{"a\n", "\n", "b\n"},
			want:      []Record{{Text: "a"}, {Text: ""}, {Text: "b"}},
		},
		{
			name:      "many lines in one read",
			fragments: []string{"1\n2\n3\n"},
			want:      []Record{{Text: "1"}, {Text: "2"}, {Text: "3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTranscript(0)
			for _, f := range tt.fragments {
				tr.WriteFragment(f, false)
			}
			assert.Equal(t, tt.want, tr.Records())
		})
	}
}

func TestTranscript_FragmentsJoinToRawStream(t *testing.T) {
	raw := "total 8\ndrwxr-xr-x 2 alice alice 4096 .\n-rw-r--r-- 1 alice alice   12 notes.txt\n"
	tr := NewTranscript(0)
	for i := 0; i < len(raw); i += 7 {
		end := i + 7
		if end > len(raw) {
			end = len(raw)
		}
		tr.WriteFragment(raw[i:end], false)
	}
	assert.Equal(t, strings.TrimSuffix(raw, "\n"), tr.String())
	assert.Equal(t, 3, tr.Len())
}

func TestTranscript_LineClosesOpenFragment(t *testing.T) {
	tr := NewTranscript(0)
	tr.WriteFragment("$ ", false)
	tr.WriteLine("disconnected", true)
	tr.WriteFragment("more", false)

	assert.Equal(t, []Record{
		{Text: "$ "},
		{Text: "disconnected", IsError: true},
		{Text: "more", Open: true},
	}, tr.Records())
}

func TestTranscript_SeverityChangeStartsNewRecord(t *testing.T) {
	tr := NewTranscript(0)
	tr.WriteFragment("out", false)
	tr.WriteFragment("err", true)

	assert.Equal(t, []Record{
		{Text: "out"},
		{Text: "err", IsError: true, Open: true},
	}, tr.Records())
}

func TestTranscript_Scrollback(t *testing.T) {
	tr := NewTranscript(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		tr.WriteLine(s, false)
	}
	assert.Equal(t, []string{"c", "d", "e"}, tr.Lines())

	tr.Clear()
	assert.Zero(t, tr.Len())
}

func TestMulti(t *testing.T) {
	a, b := NewTranscript(0), NewTranscript(0)
	m := Multi(a, b)
	m.WriteLine("x", false)
	m.WriteFragment("y", true)

	assert.Equal(t, a.Records(), b.Records())
	assert.Equal(t, 2, a.Len())
}
