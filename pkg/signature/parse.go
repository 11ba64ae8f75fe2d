package signature

import (
	"fmt"
	"strings"

	"ptc-lisp/internal/errs"
)

// Parse compiles a signature source string into a Type (spec.md §4.7).
//
// Grammar (informal):
//
//	type      := primitive | seq | set | record | func
//	primitive := ":int" | ":float" | ":string" | ":bool" | ":any" | ":keyword" | ":map"
//	seq       := "[" type "]"
//	set       := "#{" type "}"
//	record    := "{" (field ("," field)*)? ("," "...")? "}"
//	field     := key type
//	func      := "(" (param ("," param)*)? ")" "->" type
//	param     := name type
//
// Any type may carry a trailing "?" marking it optional.
func Parse(src string) (*Type, error) {
	p := &parser{src: []rune(strings.TrimSpace(src))}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected trailing input at position %d", p.pos)
	}
	return t, nil
}

type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(off int) rune {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return errs.New(errs.KindAnalysisError, fmt.Sprintf(format, args...), map[string]any{"pos": p.pos})
}

func (p *parser) expect(r rune) error {
	p.skipSpace()
	if p.peek() != r {
		return p.errorf("expected %q at position %d, got %q", r, p.pos, p.peek())
	}
	p.pos++
	return nil
}

// parseType parses one type and its optional trailing "?".
func (p *parser) parseType() (*Type, error) {
	p.skipSpace()
	var t *Type
	var err error
	switch {
	case p.peek() == ':':
		t, err = p.parsePrimitive()
	case p.peek() == '[':
		t, err = p.parseSeq()
	case p.peek() == '#' && p.peekAt(1) == '{':
		t, err = p.parseSet()
	case p.peek() == '{':
		t, err = p.parseRecord()
	case p.peek() == '(':
		t, err = p.parseFunc()
	default:
		return nil, p.errorf("unexpected character %q at position %d", p.peek(), p.pos)
	}
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == '?' {
		p.pos++
		t.Optional = true
	}
	return t, nil
}

func (p *parser) parseIdent() (string, error) {
	p.skipSpace()
	start := p.pos
	for !p.eof() && isIdentChar(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("expected identifier at position %d", p.pos)
	}
	return string(p.src[start:p.pos]), nil
}

func isIdentChar(r rune) bool {
	switch r {
	case '(', ')', '[', ']', '{', '}', ',', ':', '?', ' ', '\t', '\n', '\r', '-', '>':
		return false
	}
	return true
}

func (p *parser) parsePrimitive() (*Type, error) {
	p.pos++ // consume ':'
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	switch name {
	case "int":
		return &Type{Kind: KindInt}, nil
	case "float":
		return &Type{Kind: KindFloat}, nil
	case "string":
		return &Type{Kind: KindString}, nil
	case "bool":
		return &Type{Kind: KindBool}, nil
	case "any":
		return &Type{Kind: KindAny}, nil
	case "keyword":
		return &Type{Kind: KindKeyword}, nil
	case "map":
		return &Type{Kind: KindMap}, nil
	default:
		return nil, p.errorf("unknown primitive type :%s", name)
	}
}

func (p *parser) parseSeq() (*Type, error) {
	p.pos++ // '['
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return &Type{Kind: KindSeq, Elem: elem}, nil
}

func (p *parser) parseSet() (*Type, error) {
	p.pos += 2 // '#{'
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect('}'); err != nil {
		return nil, err
	}
	return &Type{Kind: KindSet, Elem: elem}, nil
}

func (p *parser) parseRecord() (*Type, error) {
	p.pos++ // '{'
	rec := &Type{Kind: KindRecord, Fields: map[string]*Type{}}
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return rec, nil
	}
	for {
		p.skipSpace()
		if p.peek() == '.' && p.peekAt(1) == '.' && p.peekAt(2) == '.' {
			p.pos += 3
			rec.Open = true
			p.skipSpace()
			if err := p.expect('}'); err != nil {
				return nil, err
			}
			return rec, nil
		}
		key, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		fieldType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		rec.Fields[key] = fieldType
		rec.FieldOrder = append(rec.FieldOrder, key)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if err := p.expect('}'); err != nil {
			return nil, err
		}
		return rec, nil
	}
}

func (p *parser) parseFunc() (*Type, error) {
	p.pos++ // '('
	fn := &Type{Kind: KindFunc}
	p.skipSpace()
	if p.peek() != ')' {
		for {
			name, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			paramType, err := p.parseType()
			if err != nil {
				return nil, err
			}
			fn.ParamNames = append(fn.ParamNames, name)
			fn.Params = append(fn.Params, paramType)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != '-' || p.peekAt(1) != '>' {
		return nil, p.errorf("expected -> at position %d", p.pos)
	}
	p.pos += 2
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	fn.Return = ret
	return fn, nil
}
