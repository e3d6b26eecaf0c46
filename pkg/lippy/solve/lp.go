package solve

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/perdasilva/lippy/pkg/lippy"
)

// WriteLP renders in as a CPLEX LP-format file. Rendering is deterministic:
// variables keep input order, row terms are sorted by variable id and row
// names are deduplicated with numeric suffixes. Variable ids are assumed
// already sanitized for the format by the registry.
func WriteLP(w io.Writer, in Input) error {
	lw := &lpWriter{w: w, rowNames: map[string]int{}}
	lw.writeHeader(in)
	lw.writeObjective(in)
	lw.writeConstraints(in)
	lw.writeBounds(in)
	lw.writeTypeSections(in)
	lw.printf("End\n")
	return lw.err
}

type lpWriter struct {
	w        io.Writer
	err      error
	rowNames map[string]int
}

func (lw *lpWriter) printf(format string, args ...interface{}) {
	if lw.err != nil {
		return
	}
	_, lw.err = fmt.Fprintf(lw.w, format, args...)
}

// rowName makes a constraint name safe for the format and deduplicates it:
// whitespace becomes '_', a leading digit or exponent-ambiguous character is
// prefixed, and a repeated name gets a numeric suffix.
func (lw *lpWriter) rowName(name string) string {
	if name == "" {
		name = "c"
	}
	name = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' {
			return '_'
		}
		return r
	}, name)
	switch name[0] {
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', 'e', 'E':
		name = "_" + name
	}
	n := lw.rowNames[name]
	lw.rowNames[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, n)
}

func (lw *lpWriter) writeHeader(in Input) {
	if in.Name != "" {
		lw.printf("\\ Problem: %s\n", in.Name)
	}
}

func (lw *lpWriter) writeObjective(in Input) {
	direction := "Minimize"
	if in.Objective != nil && in.Objective.Direction == lippy.Maximize {
		direction = "Maximize"
	}
	lw.printf("%s\n", direction)
	if in.Objective == nil {
		lw.printf(" obj: 0\n")
		return
	}
	expr := renderTerms(in.Objective.Coefficients)
	if expr == "" {
		expr = "0"
	}
	if c := in.Objective.Constant; c != 0 {
		expr += " + " + formatLPNumber(c)
	}
	lw.printf(" obj: %s\n", expr)
}

func (lw *lpWriter) writeConstraints(in Input) {
	lw.printf("Subject To\n")
	for _, con := range in.Constraints {
		expr := renderTerms(con.Coefficients)
		if expr == "" {
			expr = "0"
		}
		op := string(con.Op)
		if con.Op == lippy.CmpEQ {
			op = "="
		}
		lw.printf(" %s: %s %s %s\n", lw.rowName(con.Name), expr, op, formatLPNumber(con.RHS))
	}
}

// writeBounds emits one line per variable whose bounds differ from the LP
// default (0 <= x < +inf). Binary variables are implicitly bounded by their
// type section.
func (lw *lpWriter) writeBounds(in Input) {
	var lines []string
	for _, v := range in.Variables {
		if v.Type == lippy.Binary {
			continue
		}
		lower, upper := v.Lower, v.Upper
		switch {
		case math.IsInf(lower, -1) && math.IsInf(upper, 1):
			lines = append(lines, fmt.Sprintf(" %s free", v.ID))
		case lower == 0 && math.IsInf(upper, 1):
			// LP default, nothing to emit.
		case math.IsInf(upper, 1):
			lines = append(lines, fmt.Sprintf(" %s >= %s", v.ID, formatLPNumber(lower)))
		case math.IsInf(lower, -1):
			lines = append(lines, fmt.Sprintf(" -inf <= %s <= %s", v.ID, formatLPNumber(upper)))
		default:
			lines = append(lines, fmt.Sprintf(" %s <= %s <= %s", formatLPNumber(lower), v.ID, formatLPNumber(upper)))
		}
	}
	if len(lines) == 0 {
		return
	}
	lw.printf("Bounds\n")
	for _, line := range lines {
		lw.printf("%s\n", line)
	}
}

func (lw *lpWriter) writeTypeSections(in Input) {
	var general, binary []string
	for _, v := range in.Variables {
		switch v.Type {
		case lippy.Integer:
			general = append(general, v.ID)
		case lippy.Binary:
			binary = append(binary, v.ID)
		}
	}
	if len(general) > 0 {
		lw.printf("General\n")
		for _, id := range general {
			lw.printf(" %s\n", id)
		}
	}
	if len(binary) > 0 {
		lw.printf("Binary\n")
		for _, id := range binary {
			lw.printf(" %s\n", id)
		}
	}
}

// renderTerms renders a coefficient map as "2 x - 3 y", terms sorted by
// variable id.
func renderTerms(coefs map[string]float64) string {
	ids := make([]string, 0, len(coefs))
	for id := range coefs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	first := true
	for _, id := range ids {
		c := coefs[id]
		if c == 0 {
			continue
		}
		switch {
		case first && c < 0:
			b.WriteString("- ")
			c = -c
		case !first && c < 0:
			b.WriteString(" - ")
			c = -c
		case !first:
			b.WriteString(" + ")
		}
		if c != 1 {
			b.WriteString(formatLPNumber(c))
			b.WriteString(" ")
		}
		b.WriteString(id)
		first = false
	}
	return b.String()
}

// formatLPNumber renders a coefficient without exponent notation, which some
// LP readers mishandle.
func formatLPNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	return s
}
