// Package interpolation inspects the arguments a message interpolates, so
// translations can be checked against their source message.
package interpolation

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder is one argument reference found in a message.
type Placeholder struct {
	Name  string
	Start int
	End   int
}

// printfVerb detects printf-style verbs left in messages ported from other
// catalog formats.
var printfVerb = regexp.MustCompile(`%[-+0-9]*\.?[0-9]*[dsfieEgGxXoubcpq]`)

// Find returns the placeholders of an ICU message in source order: simple
// arguments ({name}), formatted arguments ({n, number}) and the selector
// argument of plural/select blocks, whose option bodies are scanned too.
// Quoted text ('{literal}') is skipped. Malformed input is scanned as far as
// possible.
func Find(message string) []Placeholder {
	s := &scanner{src: message}
	s.body(false)

	prevEnd := -1
	for _, loc := range printfVerb.FindAllStringIndex(message, -1) {
		if s.quotedAt(loc[0]) || !verbBoundary(message, loc, prevEnd) {
			continue
		}
		s.found = append(s.found, Placeholder{Name: message[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
		prevEnd = loc[1]
	}
	sortPlaceholders(s.found)
	return s.found
}

// verbBoundary rejects verbs glued to words, such as the "%o" of "50%off".
// A verb may directly follow another verb ("%d%s").
func verbBoundary(message string, loc []int, prevEnd int) bool {
	if loc[0] > 0 && loc[0] != prevEnd {
		r, _ := utf8.DecodeLastRuneInString(message[:loc[0]])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if loc[1] < len(message) {
		r, _ := utf8.DecodeRuneInString(message[loc[1]:])
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Names returns the distinct placeholder names of message, sorted.
func Names(message string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range Find(message) {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Mismatch lists the argument names a translation drops or invents compared
// with its source message.
type Mismatch struct {
	Missing    []string
	Unexpected []string
}

// Empty reports whether both messages use the same arguments.
func (m Mismatch) Empty() bool {
	return len(m.Missing) == 0 && len(m.Unexpected) == 0
}

// Compare checks translated against source.
func Compare(source, translated string) Mismatch {
	want := Names(source)
	got := Names(translated)

	var m Mismatch
	for _, n := range want {
		if !contains(got, n) {
			m.Missing = append(m.Missing, n)
		}
	}
	for _, n := range got {
		if !contains(want, n) {
			m.Unexpected = append(m.Unexpected, n)
		}
	}
	return m
}

func contains(sorted []string, s string) bool {
	i := sort.SearchStrings(sorted, s)
	return i < len(sorted) && sorted[i] == s
}

type scanner struct {
	src    string
	pos    int
	quotes [][2]int
	found  []Placeholder
}

func (s *scanner) quotedAt(i int) bool {
	for _, q := range s.quotes {
		if i >= q[0] && i < q[1] {
			return true
		}
	}
	return false
}

// body consumes message text up to an unmatched '}' or the end of input.
func (s *scanner) body(inPlural bool) {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '}':
			return
		case '{':
			s.argument()
		case '\'':
			s.quote(inPlural)
		default:
			s.pos++
		}
	}
}

func (s *scanner) quote(inPlural bool) {
	start := s.pos
	s.pos++
	if s.pos >= len(s.src) {
		return
	}
	next := s.src[s.pos]
	if next == '\'' {
		s.pos++
		return
	}
	if next != '{' && next != '}' && next != '|' && !(inPlural && next == '#') {
		return
	}
	for s.pos < len(s.src) {
		if s.src[s.pos] == '\'' {
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == '\'' {
				s.pos += 2
				continue
			}
			s.pos++
			break
		}
		s.pos++
	}
	s.quotes = append(s.quotes, [2]int{start, s.pos})
}

func (s *scanner) ws() {
	for s.pos < len(s.src) && strings.IndexByte(" \t\r\n", s.src[s.pos]) >= 0 {
		s.pos++
	}
}

func (s *scanner) token() string {
	start := s.pos
	for s.pos < len(s.src) && strings.IndexByte(" \t\r\n,{}", s.src[s.pos]) < 0 {
		s.pos++
	}
	return s.src[start:s.pos]
}

func (s *scanner) argument() {
	start := s.pos
	s.pos++ // '{'
	s.ws()
	name := s.token()
	s.ws()
	if name == "" || s.pos >= len(s.src) {
		return
	}

	switch s.src[s.pos] {
	case '}':
		s.pos++
		s.found = append(s.found, Placeholder{Name: name, Start: start, End: s.pos})
		return
	case ',':
		s.pos++
	default:
		return
	}
	s.found = append(s.found, Placeholder{Name: name, Start: start, End: start + 1 + len(name)})

	s.ws()
	kind := s.token()
	s.ws()
	if kind != "plural" && kind != "select" && kind != "selectordinal" {
		s.skipBlock()
		return
	}

	if s.pos < len(s.src) && s.src[s.pos] == ',' {
		s.pos++
	}
	for {
		s.ws()
		if s.pos >= len(s.src) {
			return
		}
		if s.src[s.pos] == '}' {
			s.pos++
			return
		}
		key := s.token()
		s.ws()
		if key == "" || s.pos >= len(s.src) || s.src[s.pos] != '{' {
			// offset:1 and similar modifiers.
			if key == "" {
				s.pos++
			}
			continue
		}
		s.pos++
		s.body(kind != "select")
		if s.pos < len(s.src) {
			s.pos++ // '}'
		}
	}
}

// skipBlock moves past the '}' closing the current argument.
func (s *scanner) skipBlock() {
	depth := 1
	for s.pos < len(s.src) && depth > 0 {
		switch s.src[s.pos] {
		case '{':
			depth++
		case '}':
			depth--
		}
		s.pos++
	}
}

// sortPlaceholders sorts by start position, then by length (descending) for
// overlaps.
func sortPlaceholders(found []Placeholder) {
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Start != found[j].Start {
			return found[i].Start < found[j].Start
		}
		return found[i].End-found[i].Start > found[j].End-found[j].Start
	})
}
