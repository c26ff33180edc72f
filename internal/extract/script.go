package extract

import (
	"strconv"
	"strings"
)

// DefaultComponentNames are the JSX components always scanned.
var DefaultComponentNames = []string{"FormattedMessage"}

// DefaultFunctionNames are the calls always scanned, either bare or as a
// member call such as intl.formatMessage(...).
var DefaultFunctionNames = []string{"formatMessage", "$formatMessage", "defineMessage"}

const defineMessagesName = "defineMessages"

// ScriptParser extracts message descriptors from JS/TS/JSX/TSX sources with
// a lexical scan. It recognises JSX components and message functions
// called with an object literal or a string literal argument.
type ScriptParser struct {
	components map[string]bool
	functions  map[string]bool
	pragma     string
}

// NewScriptParser creates a parser scanning the default names plus the
// additional ones.
func NewScriptParser(additionalComponents, additionalFunctions []string, pragma string) *ScriptParser {
	p := &ScriptParser{
		components: make(map[string]bool),
		functions:  make(map[string]bool),
		pragma:     strings.TrimPrefix(pragma, "@"),
	}
	for _, n := range append(append([]string{}, DefaultComponentNames...), additionalComponents...) {
		if n = strings.TrimSpace(n); n != "" {
			p.components[n] = true
		}
	}
	for _, n := range append(append([]string{}, DefaultFunctionNames...), additionalFunctions...) {
		if n = strings.TrimSpace(n); n != "" {
			p.functions[n] = true
		}
	}
	return p
}

// ParseFile implements SourceParser.
func (p *ScriptParser) ParseFile(path string, src []byte) (*FileResult, error) {
	s := &scan{src: string(src)}
	result := &FileResult{Path: path}

	for s.pos < len(s.src) {
		switch c := s.src[s.pos]; {
		case strings.HasPrefix(s.src[s.pos:], "//"):
			end := strings.IndexByte(s.src[s.pos:], '\n')
			if end < 0 {
				end = len(s.src) - s.pos
			}
			p.readPragma(s.src[s.pos+2:s.pos+end], result)
			s.pos += end
		case strings.HasPrefix(s.src[s.pos:], "/*"):
			end := strings.Index(s.src[s.pos+2:], "*/")
			if end < 0 {
				s.pos = len(s.src)
				continue
			}
			p.readPragma(s.src[s.pos+2:s.pos+2+end], result)
			s.pos += end + 4
		case c == '"' || c == '\'':
			if end, ok := s.lineString(s.pos); ok {
				s.pos = end
			} else {
				s.pos++
			}
		case c == '`':
			s.pos = s.skipTemplate(s.pos)
		case c == '<':
			name, end := s.ident(s.pos + 1)
			if end > s.pos+1 && p.components[name] {
				if msg, elemEnd, ok := s.element(s.pos, name); ok {
					if msg != nil {
						result.Messages = append(result.Messages, *msg)
					}
					s.pos = elemEnd
					continue
				}
			}
			s.pos++
		case isIdentStart(c):
			name, end := s.ident(s.pos)
			s.pos = end
			if !p.functions[name] && name != defineMessagesName {
				continue
			}
			open := s.skipSpace(end)
			if open >= len(s.src) || s.src[open] != '(' {
				continue
			}
			msgs, callEnd := s.call(open+1, name == defineMessagesName)
			result.Messages = append(result.Messages, msgs...)
			s.pos = callEnd
		default:
			s.pos++
		}
	}

	if result.Meta != nil {
		for i := range result.Messages {
			result.Messages[i].Meta = result.Meta
		}
	}
	return result, nil
}

// readPragma parses a comment of the form "@pragma key:value key2:value2".
func (p *ScriptParser) readPragma(comment string, result *FileResult) {
	if p.pragma == "" {
		return
	}
	fields := strings.Fields(strings.TrimLeft(comment, "* \t"))
	if len(fields) == 0 || fields[0] != "@"+p.pragma {
		return
	}
	meta := make(map[string]string)
	for _, kv := range fields[1:] {
		k, v, _ := strings.Cut(kv, ":")
		meta[k] = v
	}
	result.Meta = meta
}

// scan is a cursor over one source file.
type scan struct {
	src string
	pos int
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// ident reads an identifier starting at i.
func (s *scan) ident(i int) (string, int) {
	if i >= len(s.src) || !isIdentStart(s.src[i]) {
		return "", i
	}
	j := i + 1
	for j < len(s.src) && isIdentPart(s.src[j]) {
		j++
	}
	return s.src[i:j], j
}

// skipSpace skips whitespace and comments.
func (s *scan) skipSpace(i int) int {
	for i < len(s.src) {
		switch {
		case isSpace(s.src[i]):
			i++
		case strings.HasPrefix(s.src[i:], "//"):
			end := strings.IndexByte(s.src[i:], '\n')
			if end < 0 {
				return len(s.src)
			}
			i += end
		case strings.HasPrefix(s.src[i:], "/*"):
			end := strings.Index(s.src[i+2:], "*/")
			if end < 0 {
				return len(s.src)
			}
			i += end + 4
		default:
			return i
		}
	}
	return i
}

// lineString finds the end of a quoted string starting at i. Strings that do
// not close on the same line are not strings (an apostrophe in JSX text).
func (s *scan) lineString(i int) (int, bool) {
	q := s.src[i]
	for j := i + 1; j < len(s.src); j++ {
		switch s.src[j] {
		case '\\':
			j++
		case '\n':
			return 0, false
		case q:
			return j + 1, true
		}
	}
	return 0, false
}

func (s *scan) skipTemplate(i int) int {
	for j := i + 1; j < len(s.src); j++ {
		switch s.src[j] {
		case '\\':
			j++
		case '`':
			return j + 1
		}
	}
	return len(s.src)
}

// literal reads a string or substitution-free template literal at i,
// following "+" concatenations of further literals.
func (s *scan) literal(i int) (string, int, bool) {
	var b strings.Builder
	for {
		if i >= len(s.src) {
			return "", i, false
		}
		var end int
		switch s.src[i] {
		case '"', '\'':
			e, ok := s.lineString(i)
			if !ok {
				return "", i, false
			}
			end = e
		case '`':
			end = s.skipTemplate(i)
			if strings.Contains(s.src[i:end], "${") {
				return "", i, false
			}
		default:
			return "", i, false
		}
		b.WriteString(unescape(s.src[i+1 : end-1]))

		next := s.skipSpace(end)
		if next < len(s.src) && s.src[next] == '+' {
			after := s.skipSpace(next + 1)
			if after < len(s.src) && strings.IndexByte("\"'`", s.src[after]) >= 0 {
				i = after
				continue
			}
		}
		return b.String(), end, true
	}
}

// skipExpr advances to the next top-level ',' or closing bracket.
func (s *scan) skipExpr(i int) int {
	depth := 0
	for i < len(s.src) {
		c := s.src[i]
		switch {
		case c == '"' || c == '\'':
			if end, ok := s.lineString(i); ok {
				i = end
				continue
			}
		case c == '`':
			i = s.skipTemplate(i)
			continue
		case strings.HasPrefix(s.src[i:], "//") || strings.HasPrefix(s.src[i:], "/*"):
			i = s.skipSpace(i)
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth == 0 {
				return i
			}
			depth--
		case c == ',' && depth == 0:
			return i
		}
		i++
	}
	return i
}

// field is one property of an object literal.
type field struct {
	key   string
	str   string
	isStr bool
	obj   []field
	isObj bool
	start int
	end   int
}

// object parses an object literal whose '{' is at i.
func (s *scan) object(i int) ([]field, int, bool) {
	var fields []field
	j := i + 1
	for {
		j = s.skipSpace(j)
		if j >= len(s.src) {
			return nil, j, false
		}
		switch c := s.src[j]; {
		case c == '}':
			return fields, j + 1, true
		case c == ',':
			j++
			continue
		case strings.HasPrefix(s.src[j:], "..."):
			j = s.skipExpr(j + 3)
			continue
		}

		var key string
		switch c := s.src[j]; {
		case c == '"' || c == '\'':
			k, end, ok := s.literal(j)
			if !ok {
				return nil, j, false
			}
			key, j = k, end
		case c == '[':
			j = s.skipExpr(j + 1)
			if j < len(s.src) {
				j++
			}
		case isIdentStart(c) || (c >= '0' && c <= '9'):
			end := j
			for end < len(s.src) && isIdentPart(s.src[end]) {
				end++
			}
			key, j = s.src[j:end], end
		default:
			return nil, j, false
		}

		j = s.skipSpace(j)
		if j >= len(s.src) {
			return nil, j, false
		}
		if s.src[j] != ':' {
			// Shorthand property or method; skip it.
			j = s.skipExpr(j)
			continue
		}
		j = s.skipSpace(j + 1)

		f := field{key: key, start: j}
		if j < len(s.src) && s.src[j] == '{' {
			if nested, end, ok := s.object(j); ok && s.endsValue(end) {
				f.obj, f.isObj, f.end = nested, true, end
				fields = append(fields, f)
				j = end
				continue
			}
		}
		if str, end, ok := s.literal(j); ok && s.endsValue(end) {
			f.str, f.isStr, f.end = str, true, end
			fields = append(fields, f)
			j = end
			continue
		}
		j = s.skipExpr(j)
	}
}

// endsValue reports whether a property value ends at i.
func (s *scan) endsValue(i int) bool {
	i = s.skipSpace(i)
	return i >= len(s.src) || s.src[i] == ',' || s.src[i] == '}'
}

// call parses the arguments of a message function whose '(' precedes i.
func (s *scan) call(i int, isDefineMessages bool) ([]Descriptor, int) {
	j := s.skipSpace(i)
	if j >= len(s.src) {
		return nil, j
	}

	if s.src[j] == '{' {
		fields, end, ok := s.object(j)
		if !ok {
			return nil, j
		}
		if isDefineMessages {
			var out []Descriptor
			for _, f := range fields {
				if !f.isObj {
					continue
				}
				if d, ok := descriptorFromFields(f.obj); ok {
					out = append(out, withSpan(d, f.start, f.end))
				}
			}
			return out, end
		}
		if d, ok := descriptorFromFields(fields); ok {
			return []Descriptor{withSpan(d, j, end)}, end
		}
		return nil, end
	}

	if !isDefineMessages {
		if str, end, ok := s.literal(j); ok {
			// The quoted span, without "+" continuations.
			litEnd := end
			if first, ok := s.lineString(j); ok && s.src[j] != '`' {
				litEnd = first
			}
			d := Descriptor{ID: str, DefaultMessage: str}
			return []Descriptor{withSpan(d, j, litEnd)}, end
		}
	}
	return nil, j
}

func descriptorFromFields(fields []field) (Descriptor, bool) {
	var d Descriptor
	for _, f := range fields {
		if !f.isStr {
			continue
		}
		switch f.key {
		case "id":
			d.ID = f.str
		case "defaultMessage":
			d.DefaultMessage = f.str
		case "description":
			d.Description = f.str
		}
	}
	return d, d.ID != "" || d.DefaultMessage != ""
}

func withSpan(d Descriptor, start, end int) Descriptor {
	d.Start = intPtr(start)
	d.End = intPtr(end)
	return d
}

func intPtr(n int) *int { return &n }

// element parses a JSX element of component name whose '<' is at i.
func (s *scan) element(i int, name string) (*Descriptor, int, bool) {
	j := i + 1 + len(name)
	attrs := make(map[string]string)
	for {
		j = s.skipSpace(j)
		if j >= len(s.src) {
			return nil, j, false
		}
		switch {
		case strings.HasPrefix(s.src[j:], "/>"):
			return s.elementDescriptor(attrs, i, j+2), j + 2, true
		case s.src[j] == '>':
			end := j + 1
			if k := strings.Index(s.src[end:], "</"+name+">"); k >= 0 {
				end += k + len(name) + 3
			}
			return s.elementDescriptor(attrs, i, end), end, true
		case s.src[j] == '{':
			j = s.skipExpr(j+1) + 1
			continue
		}

		start := j
		for j < len(s.src) && (isIdentPart(s.src[j]) || s.src[j] == '-' || s.src[j] == ':') {
			j++
		}
		if j == start {
			return nil, j, false
		}
		attr := s.src[start:j]

		j = s.skipSpace(j)
		if j >= len(s.src) || s.src[j] != '=' {
			continue
		}
		j = s.skipSpace(j + 1)
		if j >= len(s.src) {
			return nil, j, false
		}

		switch s.src[j] {
		case '"', '\'':
			end := strings.IndexByte(s.src[j+1:], s.src[j])
			if end < 0 {
				return nil, j, false
			}
			attrs[attr] = s.src[j+1 : j+1+end]
			j += end + 2
		case '{':
			inner := s.skipSpace(j + 1)
			if str, end, ok := s.literal(inner); ok {
				if close := s.skipSpace(end); close < len(s.src) && s.src[close] == '}' {
					attrs[attr] = str
					j = close + 1
					continue
				}
			}
			j = s.skipExpr(j+1) + 1
		default:
			return nil, j, false
		}
	}
}

func (s *scan) elementDescriptor(attrs map[string]string, start, end int) *Descriptor {
	d := Descriptor{
		ID:             attrs["id"],
		DefaultMessage: attrs["defaultMessage"],
		Description:    attrs["description"],
	}
	if d.ID == "" && d.DefaultMessage == "" {
		return nil
	}
	d = withSpan(d, start, end)
	return &d
}

// unescape resolves the backslash escapes of a JS string body.
func unescape(body string) string {
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\n':
			// Line continuation.
		case 'u':
			if i+4 < len(body) {
				if r, err := strconv.ParseUint(body[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteByte(e)
		default:
			b.WriteByte(e)
		}
	}
	return b.String()
}

// lineCol converts a byte offset into a line number and column. Offset 0
// reports column 1; elsewhere the column is the length of the text preceding
// the offset on its line.
func lineCol(src []byte, offset *int) (int, int) {
	if offset == nil || *offset <= 0 {
		return 1, 1
	}
	chunk := string(src[:min(*offset, len(src))])
	line := strings.Count(chunk, "\n") + 1
	col := len(chunk)
	if k := strings.LastIndexByte(chunk, '\n'); k >= 0 {
		col = len(chunk) - k - 1
	}
	return line, col
}
