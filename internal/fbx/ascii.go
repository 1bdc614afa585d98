package fbx

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName          // identifier followed by ':'
	tokString        // "quoted"
	tokWord          // number or bare word
	tokStar          // *N array length
	tokComma
	tokLBrace
	tokRBrace
)

type token struct {
	kind    tokenKind
	text    string
	line    int
	newline bool // a line break precedes this token
}

// arrayLen marks the *N prefix of an ASCII array until it is folded.
type arrayLen int64

// lexASCII splits an ASCII FBX document into tokens. Comments start with ';'.
func lexASCII(src []byte) ([]token, error) {
	var toks []token
	line := 1
	nl := true
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			nl = true
			i++
			continue
		case c == ' ' || c == '\t' || c == '\r':
			i++
			continue
		case c == ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		}

		t := token{line: line, newline: nl}
		nl = false
		switch c {
		case '{':
			t.kind = tokLBrace
			i++
		case '}':
			t.kind = tokRBrace
			i++
		case ',':
			t.kind = tokComma
			i++
		case '"':
			j := i + 1
			for j < len(src) && src[j] != '"' {
				if src[j] == '\n' {
					line++
				}
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("ascii: line %d: unterminated string", t.line)
			}
			t.kind, t.text = tokString, string(src[i+1:j])
			i = j + 1
		case '*':
			j := i + 1
			for j < len(src) && src[j] >= '0' && src[j] <= '9' {
				j++
			}
			t.kind, t.text = tokStar, string(src[i+1:j])
			i = j
		default:
			j := i
			for j < len(src) && !isDelim(src[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("ascii: line %d: unexpected %q", line, c)
			}
			t.text = string(src[i:j])
			if j < len(src) && src[j] == ':' {
				t.kind = tokName
				j++
			} else {
				t.kind = tokWord
			}
			i = j
		}
		toks = append(toks, t)
	}
	return append(toks, token{kind: tokEOF, line: line, newline: true}), nil
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ',', '{', '}', ':', '"', ';':
		return true
	}
	return false
}

type asciiParser struct {
	toks []token
	pos  int
}

func (p *asciiParser) peek() token { return p.toks[p.pos] }

func (p *asciiParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// decodeASCII parses an ASCII FBX document into a root node.
func decodeASCII(src []byte) (*Node, error) {
	toks, err := lexASCII(src)
	if err != nil {
		return nil, err
	}
	p := &asciiParser{toks: toks}
	children, err := p.parseNodes(false)
	if err != nil {
		return nil, err
	}
	return &Node{Children: children}, nil
}

func (p *asciiParser) parseNodes(nested bool) ([]*Node, error) {
	var out []*Node
	for {
		t := p.peek()
		switch t.kind {
		case tokEOF:
			if nested {
				return nil, fmt.Errorf("ascii: line %d: unclosed '{'", t.line)
			}
			return out, nil
		case tokRBrace:
			if !nested {
				return nil, fmt.Errorf("ascii: line %d: unexpected '}'", t.line)
			}
			p.next()
			return out, nil
		case tokName:
			n, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		default:
			return nil, fmt.Errorf("ascii: line %d: expected a name, got %q", t.line, t.text)
		}
	}
}

func isValue(k tokenKind) bool {
	return k == tokString || k == tokWord || k == tokStar
}

func (p *asciiParser) parseNode() (*Node, error) {
	n := &Node{Name: p.next().text}

	// Values end at the line break unless a comma carries them over.
	if t := p.peek(); !t.newline && (isValue(t.kind) || t.kind == tokComma) {
		for {
			t := p.peek()
			if isValue(t.kind) {
				v, err := value(p.next())
				if err != nil {
					return nil, err
				}
				n.Props = append(n.Props, v)
			} else {
				n.Props = append(n.Props, "")
			}
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}

	if p.peek().kind == tokLBrace {
		p.next()
		children, err := p.parseNodes(true)
		if err != nil {
			return nil, err
		}
		n.Children = children
	}
	foldArray(n)
	return n, nil
}

// foldArray turns `Name: *N { a: v, v, ... }` into a node with one array
// property, the shape the binary encoding produces.
func foldArray(n *Node) {
	if len(n.Props) != 1 {
		return
	}
	if _, ok := n.Props[0].(arrayLen); !ok {
		return
	}
	a := n.Child("a")
	if a == nil {
		n.Props = []any{[]float64{}}
		return
	}
	allInt := true
	for _, v := range a.Props {
		if _, ok := v.(int64); !ok {
			allInt = false
			break
		}
	}
	if allInt {
		n.Props = []any{intArray(a.Props)}
	} else {
		n.Props = []any{floatArray(a.Props)}
	}
	n.Children = nil
}

func value(t token) (any, error) {
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokStar:
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ascii: line %d: bad array length %q", t.line, t.text)
		}
		return arrayLen(v), nil
	}
	if v, err := strconv.ParseInt(t.text, 10, 64); err == nil {
		return v, nil
	}
	if v, err := strconv.ParseFloat(t.text, 64); err == nil {
		return v, nil
	}
	// Bare words such as T, Y or W.
	return t.text, nil
}
