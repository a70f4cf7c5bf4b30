package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadiness(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ready bool
	}{
		{"empty", "", false},
		{"whitespace", "  \n", false},
		{"expression", "1 + 2\n", true},
		{"define", "x := 40\n", true},
		{"call", "fmt.Println(\"hi\")\n", true},
		{"open paren", "fmt.Println(\n", false},
		{"open brace", "func add(a, b int) int {\n", false},
		{"closed brace", "func add(a, b int) int {\n\treturn a + b\n}\n", true},
		{"nested", "m := map[string][]int{\n\"a\": {1,\n", false},
		{"over closed", ")\n", true},
		{"trailing plus", "x := 1 +\n", false},
		{"trailing comma", "f(a,\n", false},
		{"trailing period", "fmt.\n", false},
		{"trailing and", "ok := a &&\n", false},
		{"trailing assign", "x =\n", false},
		{"trailing arrow", "ch <-\n", false},
		{"increment", "x++\n", true},
		{"raw string open", "s := `line one\n", false},
		{"raw string closed", "s := `line one\nline two`\n", true},
		{"block comment open", "/* note\n", false},
		{"line comment", "x := 1 // trailing +\n", true},
		{"comment only", "// nothing\n", false},
		{"else pending", "if x { y() } else\n", false},
		{"explicit semicolon", "x := 1;\n", true},
		{"unterminated string", "\"abc\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ready, scanBalance(tt.input).ready())
		})
	}
}

func TestContinuationIndent(t *testing.T) {
	e := &GoEngine{}

	assert.Equal(t, 0, e.ContinuationIndent("x := 1\n"))
	assert.Equal(t, 2, e.ContinuationIndent("func f() {\n"))
	assert.Equal(t, 4, e.ContinuationIndent("func f() {\nif x {\n"))
	assert.Equal(t, 0, e.ContinuationIndent("}}\n"))
}

func TestPackageClause(t *testing.T) {
	ns, ok := packageClause("package tools\n")
	assert.True(t, ok)
	assert.Equal(t, "tools", ns)

	ns, ok = packageClause("// header\npackage util\n")
	assert.True(t, ok)
	assert.Equal(t, "util", ns)

	_, ok = packageClause("x := 1\n")
	assert.False(t, ok)

	_, ok = packageClause("package\n")
	assert.False(t, ok)
}
