package llmjson

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairSyntax(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare keys and values",
			in:   `{invoice_number: INV-001, total: 100}`,
			want: `{"invoice_number": "INV-001", "total": "100"}`,
		},
		{
			name: "whitespace collapsed",
			in:   "{\n  a:\t1\n}",
			want: `{ "a": "1" }`,
		},
		{
			name: "hyphenated key and multi word value",
			in:   `{client-name: Acme Corp, city: New York}`,
			want: `{"client-name": "Acme Corp", "city": "New York"}`,
		},
		{
			name: "literals untouched",
			in:   `{a: true, b: null, c: false}`,
			want: `{"a": true, "b": null, "c": false}`,
		},
		{
			name: "colon inside string left alone",
			in:   `{"note": "see a: b, c", k: v}`,
			want: `{"note": "see a: b, c", "k": "v"}`,
		},
		{
			name: "nested object",
			in:   `{seller: {name: Acme, vat: DE-123}}`,
			want: `{"seller": {"name": "Acme", "vat": "DE-123"}}`,
		},
		{
			name: "path and dotted values",
			in:   `{file: scans/inv.png, date: 2024.01.31}`,
			want: `{"file": "scans/inv.png", "date": "2024.01.31"}`,
		},
		{
			name: "already valid json",
			in:   `{"a": "b", "c": [1, 2]}`,
			want: `{"a": "b", "c": [1, 2]}`,
		},
		{
			name: "single quoted key not double quoted",
			in:   `{'a': 'b'}`,
			want: `{'a': 'b'}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairSyntax(tt.in))
		})
	}
}

var repairSeeds = []string{
	`{invoice_number: INV-001, total: 100}`,
	"{\n a : b ,\n c : { d : e } }",
	`{"note": "x: y", z: w}`,
	`{"open": "never closed, k: v}`,
	`{items: [a, b], total: 12.50}`,
	`{'a': 'b', c: d}`,
	`[1}b _\a:"a }b: _`,
	`{\"a\": 1, b: 2}`,
	`{path: C:\tmp, "x\"y": z}`,
	`plain text without braces`,
	``,
}

func TestRepairSyntaxIdempotent(t *testing.T) {
	for _, in := range repairSeeds {
		once := RepairSyntax(in)
		assert.Equal(t, once, RepairSyntax(once), "input %q", in)
	}

	// Random inputs over the characters the repair reacts to.
	const alphabet = `{}:", ab1-_.'\/ [` + "\n"
	rng := rand.New(rand.NewSource(7))
	buf := make([]byte, 0, 32)
	for i := 0; i < 20000; i++ {
		buf = buf[:0]
		for n := rng.Intn(32); n > 0; n-- {
			buf = append(buf, alphabet[rng.Intn(len(alphabet))])
		}
		in := string(buf)
		once := RepairSyntax(in)
		if !assert.Equal(t, once, RepairSyntax(once), "input %q", in) {
			return
		}
	}
}

func TestRepairSyntaxBackslashBeforeKey(t *testing.T) {
	once := RepairSyntax(`[1}b _\a:"a }b: _`)
	assert.Equal(t, `[1}b _\"a":"a }b: _`, once)
	assert.Equal(t, once, RepairSyntax(once))
}

func FuzzRepairSyntaxIdempotent(f *testing.F) {
	for _, s := range repairSeeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := RepairSyntax(in)
		if twice := RepairSyntax(once); twice != once {
			t.Fatalf("not idempotent for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	})
}

func TestComplete(t *testing.T) {
	t.Run("valid input unchanged", func(t *testing.T) {
		in := `{"a": "b"}`
		assert.Equal(t, in, Complete(in, DefaultCompletionAttempts))
	})

	t.Run("one unclosed level", func(t *testing.T) {
		got := Complete(`{"a": "b"`, DefaultCompletionAttempts)
		assert.Equal(t, `{"a": "b" }`, got)
		assert.True(t, json.Valid([]byte(got)))
	})

	t.Run("two unclosed levels", func(t *testing.T) {
		got := Complete(`{"a": {"b": "c"`, DefaultCompletionAttempts)
		assert.Equal(t, `{"a": {"b": "c" } }`, got)
		assert.True(t, json.Valid([]byte(got)))
	})

	t.Run("budget exhausted returns longest candidate", func(t *testing.T) {
		got := Complete(`{"a": [`, DefaultCompletionAttempts)
		assert.Equal(t, DefaultCompletionAttempts, strings.Count(got, closingBrace))
		assert.False(t, json.Valid([]byte(got)))
	})

	t.Run("non-positive budget uses default", func(t *testing.T) {
		got := Complete(`{"a": [`, 0)
		assert.Equal(t, DefaultCompletionAttempts, strings.Count(got, closingBrace))
	})

	t.Run("small budget stops early", func(t *testing.T) {
		got := Complete(`{"a": {"b": "c"`, 1)
		assert.Equal(t, `{"a": {"b": "c" }`, got)
	})
}
