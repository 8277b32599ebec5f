package gcode

import "errors"
import "fmt"
import "strconv"
import "strings"

func floatToString(f float64, p int) string {
	x := strconv.FormatFloat(f, 'f', p, 64)

	// Hacky way to remove silly zeroes
	if strings.IndexRune(x, '.') != -1 {
		for x[len(x)-1] == '0' {
			x = x[:len(x)-1]
		}
		if x[len(x)-1] == '.' {
			x = x[:len(x)-1]
		}
	}
	if x == "-0" {
		x = "0"
	}

	return x
}

type Node interface {
	Export(precision int) string
}

// A word, consisting of an address and a command value.
type Word struct {
	Address rune
	Command float64
}

func (w *Word) Export(precision int) string {
	return string(w.Address) + floatToString(w.Command, precision)
}

// A comment, either parenthesized or running to the end of the line.
type Comment struct {
	Content string
	EOL     bool
}

func (c *Comment) Export(precision int) string {
	if c.EOL {
		return ";" + c.Content
	}
	return "(" + c.Content + ")"
}

type Filemarker struct{}

func (f *Filemarker) Export(precision int) string {
	return "%"
}

type Block struct {
	BlockDelete bool
	Nodes       []Node
}

func (b *Block) AppendNode(n Node) {
	b.Nodes = append(b.Nodes, n)
}

// Finds the value of the word with the given address.
func (b *Block) GetWord(address rune) (float64, error) {
	for _, n := range b.Nodes {
		if w, ok := n.(*Word); ok && w.Address == address {
			return w.Command, nil
		}
	}
	return 0, errors.New(fmt.Sprintf("Word '%c' not found in block", address))
}

func (b *Block) GetWordDefault(address rune, def float64) float64 {
	if v, err := b.GetWord(address); err == nil {
		return v
	}
	return def
}

// Reports whether the block holds the exact word.
func (b *Block) IncludesOneOf(words ...*Word) bool {
	for _, n := range b.Nodes {
		if w, ok := n.(*Word); ok {
			for _, x := range words {
				if *w == *x {
					return true
				}
			}
		}
	}
	return false
}

// Reports whether the block holds a word with any of the addresses.
func (b *Block) IncludesAddress(addresses ...rune) bool {
	for _, n := range b.Nodes {
		if w, ok := n.(*Word); ok {
			for _, a := range addresses {
				if w.Address == a {
					return true
				}
			}
		}
	}
	return false
}

func (b *Block) Export(precision int) string {
	var s []string
	if b.BlockDelete {
		s = append(s, "/")
	}
	for _, n := range b.Nodes {
		s = append(s, n.Export(precision))
	}
	return strings.Join(s, "")
}

type Document struct {
	Blocks []Block
}

func (d *Document) AppendBlock(b Block) {
	d.Blocks = append(d.Blocks, b)
}

func (d *Document) Length() int {
	return len(d.Blocks)
}

func (d *Document) Export(precision int) string {
	var s []string
	for _, b := range d.Blocks {
		s = append(s, b.Export(precision))
	}
	return strings.Join(s, "\n")
}
