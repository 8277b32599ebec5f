package gcode

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrSyntax = errors.New("syntax error")

// SyntaxError locates a parse failure. Line and Column count from 1.
type SyntaxError struct {
	Line, Column int
	Msg          string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, pos %d: %s", e.Line, e.Column, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// Parse reads one block per line. Words take a letter address, in either
// case, and a decimal value. Comments are (parenthesized) or run from ';' to
// the end of the line, '/' in the first column marks a block delete and '%'
// is kept as a file marker.
func Parse(input string) (*Document, error) {
	var doc Document
	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Buffer(nil, 1<<20)
	for n := 1; sc.Scan(); n++ {
		b, err := parseLine(sc.Text(), n)
		if err != nil {
			return nil, err
		}
		doc.AppendBlock(b)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func parseLine(line string, n int) (Block, error) {
	var b Block
	fail := func(i int, format string, args ...interface{}) (Block, error) {
		return Block{}, &SyntaxError{Line: n, Column: i + 1, Msg: fmt.Sprintf(format, args...)}
	}

	line = strings.TrimRight(line, "\r")
	i := 0
	if strings.HasPrefix(line, "/") {
		b.BlockDelete = true
		i++
	}

	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '%':
			b.AppendNode(&Filemarker{})
			i++
		case c == '(':
			end := strings.IndexByte(line[i:], ')')
			if end < 0 {
				return fail(i, "non-terminated comment")
			}
			b.AppendNode(&Comment{line[i+1 : i+end], false})
			i += end + 1
		case c == ';':
			b.AppendNode(&Comment{line[i+1:], true})
			i = len(line)
		case c == '/':
			return fail(i, "unexpected /")
		case isAddress(c):
			addr := rune(c)
			if c >= 'a' && c <= 'z' {
				addr -= 'a' - 'A'
			}
			j := i + 1
			for j < len(line) && isNumeric(line[j]) {
				j++
			}
			f, err := strconv.ParseFloat(line[i+1:j], 64)
			if err != nil {
				return fail(i, "invalid value for %c: %q", addr, line[i+1:j])
			}
			b.AppendNode(&Word{addr, f})
			i = j
		default:
			return fail(i, "expected word address, found %c", c)
		}
	}
	return b, nil
}

func isAddress(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '@' || c == '^'
}

func isNumeric(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+'
}
