// Package reader implements the PTC-Lisp lexer and parser (C2): sanitizes
// source text, tokenizes it, and builds the raw AST that pkg/analyzer then
// desugars and resolves into the core AST.
package reader

import (
	"strconv"
	"strings"

	"ptc-lisp/internal/errs"
)

// Parser consumes a token stream and builds Raw nodes.
type Parser struct {
	toks []Token
	pos  int
}

// ParseAll sanitizes and tokenizes src, then parses every top-level form.
// Reader-macro discards (#_) are resolved here, per spec.md §4.1.
func ParseAll(src string) ([]Raw, error) {
	clean := Sanitize(src)
	toks, err := Tokenize(clean)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	var forms []Raw
	for !p.atEOF() {
		if dropped, err := p.dropDiscard(); err != nil {
			return nil, err
		} else if dropped {
			continue
		}
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

// dropDiscard consumes one `#_` and its target form when the cursor sits on
// a discard in element position (top level or inside a collection), where —
// unlike parseForm's own discard handling — no further form needs to follow:
// `(a #_b)` is legal and reads as `(a)`. The discarded target is read through
// parseForm, so a chained `#_#_a b` still swallows both forms.
func (p *Parser) dropDiscard() (bool, error) {
	if p.cur().Kind != TokDiscard {
		return false, nil
	}
	t := p.advance()
	if p.atEOF() {
		return false, errs.New(errs.KindParseError, "#_ discard at end of input", map[string]any{"pos": t.Pos})
	}
	if _, err := p.parseForm(); err != nil {
		return false, err
	}
	return true, nil
}

// ParseOne parses exactly the first top-level form (used by the evaluator's
// REPL-style callers and by the SubAgent single-shot path).
func ParseOne(src string) (Raw, error) {
	forms, err := ParseAll(src)
	if err != nil {
		return Raw{}, err
	}
	if len(forms) == 0 {
		return Raw{}, errs.New(errs.KindParseError, "no forms found", nil)
	}
	return forms[0], nil
}

func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) cur() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: TokEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

// parseForm reads exactly one form, transparently resolving any number of
// leading `#_` discards. `#_ X` reads and drops X (itself read through this
// same function, so discards nest: `#_#_a b c` discards `a` while reading
// the inner `#_a` unit, then discards `b` while reading that unit's own
// successor, leaving `c` as the form this call finally returns) — this
// matches spec.md §4.1's worked example exactly.
func (p *Parser) parseForm() (Raw, error) {
	t := p.cur()
	if t.Kind == TokDiscard {
		p.advance()
		if p.atEOF() {
			return Raw{}, errs.New(errs.KindParseError, "#_ discard at end of input", map[string]any{"pos": t.Pos})
		}
		if _, err := p.parseForm(); err != nil { // read + drop the discarded form
			return Raw{}, err
		}
		if p.atEOF() {
			return Raw{}, errs.New(errs.KindParseError, "#_ discard at end of input", map[string]any{"pos": t.Pos})
		}
		return p.parseForm() // the form that follows becomes this call's result
	}

	switch t.Kind {
	case TokEOF:
		return Raw{}, errs.New(errs.KindParseError, "unexpected end of input", nil)
	case TokLParen:
		return p.parseSeq(TokRParen, RawList, "(", ")")
	case TokLBracket:
		return p.parseSeq(TokRBracket, RawVector, "[", "]")
	case TokLBrace:
		return p.parseSeq(TokRBrace, RawMap, "{", "}")
	case TokHashBrace:
		return p.parseSeq(TokRBrace, RawSet, "#{", "}")
	case TokQuote:
		p.advance()
		inner, err := p.parseForm()
		if err != nil {
			return Raw{}, err
		}
		return Raw{Kind: RawQuote, Items: []Raw{inner}, Pos: t.Pos}, nil
	case TokRParen, TokRBracket, TokRBrace:
		return Raw{}, errs.New(errs.KindParseError, "unbalanced closing delimiter", map[string]any{"pos": t.Pos})
	case TokNil:
		p.advance()
		return Raw{Kind: RawAtom, Atom: AtomValue{Kind: AtomNil}, Pos: t.Pos}, nil
	case TokTrue:
		p.advance()
		return Raw{Kind: RawAtom, Atom: AtomValue{Kind: AtomBool, Bool: true}, Pos: t.Pos}, nil
	case TokFalse:
		p.advance()
		return Raw{Kind: RawAtom, Atom: AtomValue{Kind: AtomBool, Bool: false}, Pos: t.Pos}, nil
	case TokString:
		p.advance()
		return Raw{Kind: RawAtom, Atom: AtomValue{Kind: AtomString, Text: t.Text}, Pos: t.Pos}, nil
	case TokKeyword:
		p.advance()
		return Raw{Kind: RawAtom, Atom: AtomValue{Kind: AtomKeyword, Text: t.Text}, Pos: t.Pos}, nil
	case TokSymbol:
		p.advance()
		return Raw{Kind: RawAtom, Atom: AtomValue{Kind: AtomSymbol, Text: t.Text}, Pos: t.Pos}, nil
	case TokNumber:
		p.advance()
		return p.parseNumber(t)
	default:
		return Raw{}, errs.New(errs.KindParseError, "unexpected token", map[string]any{"pos": t.Pos})
	}
}

func (p *Parser) parseNumber(t Token) (Raw, error) {
	if !strings.ContainsAny(t.Text, ".eE") {
		if i, err := strconv.ParseInt(t.Text, 10, 64); err == nil {
			return Raw{Kind: RawAtom, Atom: AtomValue{Kind: AtomInt, Int: i}, Pos: t.Pos}, nil
		}
	}
	f, err := strconv.ParseFloat(t.Text, 64)
	if err != nil {
		return Raw{}, errs.New(errs.KindParseError, "malformed number literal: "+t.Text, map[string]any{"pos": t.Pos})
	}
	return Raw{Kind: RawAtom, Atom: AtomValue{Kind: AtomFloat, Float: f}, Pos: t.Pos}, nil
}

// parseSeq parses a delimited sequence of forms, dropping any `#_` discards
// in element position via dropDiscard — including a discard whose target is
// the sequence's last element.
func (p *Parser) parseSeq(close TokenKind, kind RawKind, openSym, closeSym string) (Raw, error) {
	open := p.advance() // consume opening delimiter
	var items []Raw
	for {
		if p.atEOF() {
			return Raw{}, errs.New(errs.KindParseError, "unbalanced "+openSym+" — missing "+closeSym, map[string]any{"pos": open.Pos})
		}
		if p.cur().Kind == close {
			p.advance()
			return Raw{Kind: kind, Items: items, Pos: open.Pos}, nil
		}
		if dropped, err := p.dropDiscard(); err != nil {
			return Raw{}, err
		} else if dropped {
			continue
		}
		form, err := p.parseForm()
		if err != nil {
			return Raw{}, err
		}
		items = append(items, form)
	}
}
