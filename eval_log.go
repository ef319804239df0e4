package flagkit

import (
	"fmt"
	"strings"
)

// evalLogBuilder accumulates the human-readable evaluation trace
// (event 5000) flushed once per top-level evaluation. Nested segment and
// prerequisite evaluations indent their lines, the way a recursive
// rule walk naturally reads.
type evalLogBuilder struct {
	b      strings.Builder
	indent int
}

func newEvalLogBuilder() *evalLogBuilder {
	return &evalLogBuilder{}
}

func (l *evalLogBuilder) line(format string, args ...interface{}) {
	if l.b.Len() > 0 {
		l.b.WriteByte('\n')
	}
	l.b.WriteString(strings.Repeat("  ", l.indent))
	fmt.Fprintf(&l.b, format, args...)
}

func (l *evalLogBuilder) push() { l.indent++ }
func (l *evalLogBuilder) pop() {
	if l.indent > 0 {
		l.indent--
	}
}

func (l *evalLogBuilder) String() string { return l.b.String() }
