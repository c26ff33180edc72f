package extract

import (
	"fmt"
	"strings"
)

// icuElement is either raw message text (literal text or a simple argument,
// kept verbatim) or a plural/select argument.
type icuElement struct {
	raw string
	sel *icuSelector
}

type icuSelector struct {
	name    string
	kind    string
	offset  string
	options []icuOption
}

type icuOption struct {
	key   string
	value []icuElement
}

func isSelectorKind(kind string) bool {
	return kind == "plural" || kind == "select" || kind == "selectordinal"
}

// HoistSelectors rewrites an ICU message so that the first plural/select
// argument encloses the whole sentence, recursively, e.g.
// "I have {n, plural, one{a dog} other{dogs}}" becomes
// "{n, plural, one{I have a dog} other{I have dogs}}".
func HoistSelectors(message string) (string, error) {
	p := &icuParser{src: message}
	elems, err := p.message(false)
	if err != nil {
		return "", err
	}
	if p.pos < len(p.src) {
		return "", fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	return printICU(hoist(elems)), nil
}

func hoist(elems []icuElement) []icuElement {
	for i, el := range elems {
		if el.sel == nil {
			continue
		}
		cloned := &icuSelector{name: el.sel.name, kind: el.sel.kind, offset: el.sel.offset}
		for _, opt := range el.sel.options {
			value := make([]icuElement, 0, len(elems)+len(opt.value))
			value = append(value, elems[:i]...)
			value = append(value, opt.value...)
			value = append(value, elems[i+1:]...)
			cloned.options = append(cloned.options, icuOption{key: opt.key, value: hoist(value)})
		}
		return []icuElement{{sel: cloned}}
	}
	return elems
}

func printICU(elems []icuElement) string {
	var b strings.Builder
	for _, el := range elems {
		if el.sel == nil {
			b.WriteString(el.raw)
			continue
		}
		b.WriteString("{" + el.sel.name + ", " + el.sel.kind + ", ")
		if el.sel.offset != "" {
			b.WriteString("offset:" + el.sel.offset + " ")
		}
		for i, opt := range el.sel.options {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(opt.key + "{" + printICU(opt.value) + "}")
		}
		b.WriteByte('}')
	}
	return b.String()
}

type icuParser struct {
	src string
	pos int
}

func (p *icuParser) ws() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

// message parses elements until an unmatched '}' or the end of input.
func (p *icuParser) message(inPlural bool) ([]icuElement, error) {
	var elems []icuElement
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			elems = append(elems, icuElement{raw: text.String()})
			text.Reset()
		}
	}

	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '}':
			flush()
			return elems, nil
		case c == '{':
			flush()
			el, err := p.argument()
			if err != nil {
				return nil, err
			}
			elems = append(elems, el)
		case c == '\'':
			text.WriteString(p.quoted(inPlural))
		default:
			text.WriteByte(c)
			p.pos++
		}
	}
	flush()
	return elems, nil
}

// quoted consumes an apostrophe sequence and returns it verbatim.
func (p *icuParser) quoted(inPlural bool) string {
	start := p.pos
	if p.pos+1 < len(p.src) {
		next := p.src[p.pos+1]
		if next == '\'' {
			p.pos += 2
			return p.src[start:p.pos]
		}
		if next == '{' || next == '}' || next == '|' || (inPlural && next == '#') {
			p.pos += 2
			for p.pos < len(p.src) {
				if p.src[p.pos] == '\'' {
					if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'' {
						p.pos += 2
						continue
					}
					p.pos++
					break
				}
				p.pos++
			}
			return p.src[start:p.pos]
		}
	}
	p.pos++
	return "'"
}

func (p *icuParser) token() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if isSpace(c) || c == ',' || c == '{' || c == '}' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *icuParser) argument() (icuElement, error) {
	start := p.pos
	p.pos++ // '{'
	p.ws()
	name := p.token()
	if name == "" {
		return icuElement{}, fmt.Errorf("empty argument at offset %d", start)
	}
	p.ws()
	if p.pos >= len(p.src) {
		return icuElement{}, fmt.Errorf("unterminated argument at offset %d", start)
	}
	if p.src[p.pos] == '}' {
		p.pos++
		return icuElement{raw: p.src[start:p.pos]}, nil
	}
	if p.src[p.pos] != ',' {
		return icuElement{}, fmt.Errorf("expected ',' at offset %d", p.pos)
	}
	p.pos++
	p.ws()
	kind := p.token()
	p.ws()

	if !isSelectorKind(kind) {
		depth := 1
		for p.pos < len(p.src) && depth > 0 {
			switch p.src[p.pos] {
			case '{':
				depth++
			case '}':
				depth--
			}
			p.pos++
		}
		if depth > 0 {
			return icuElement{}, fmt.Errorf("unterminated argument at offset %d", start)
		}
		return icuElement{raw: p.src[start:p.pos]}, nil
	}

	if p.pos >= len(p.src) || p.src[p.pos] != ',' {
		return icuElement{}, fmt.Errorf("expected options for %s argument at offset %d", kind, start)
	}
	p.pos++
	p.ws()

	sel := &icuSelector{name: name, kind: kind}
	if strings.HasPrefix(p.src[p.pos:], "offset:") {
		p.pos += len("offset:")
		p.ws()
		sel.offset = p.token()
		p.ws()
	}

	for {
		p.ws()
		if p.pos >= len(p.src) {
			return icuElement{}, fmt.Errorf("unterminated %s argument at offset %d", kind, start)
		}
		if p.src[p.pos] == '}' {
			p.pos++
			break
		}
		key := p.token()
		p.ws()
		if key == "" || p.pos >= len(p.src) || p.src[p.pos] != '{' {
			return icuElement{}, fmt.Errorf("expected option at offset %d", p.pos)
		}
		p.pos++
		value, err := p.message(kind != "select")
		if err != nil {
			return icuElement{}, err
		}
		if p.pos >= len(p.src) {
			return icuElement{}, fmt.Errorf("unterminated option %q at offset %d", key, start)
		}
		p.pos++ // '}'
		sel.options = append(sel.options, icuOption{key: key, value: value})
	}
	if len(sel.options) == 0 {
		return icuElement{}, fmt.Errorf("%s argument without options at offset %d", kind, start)
	}
	return icuElement{sel: sel}, nil
}
