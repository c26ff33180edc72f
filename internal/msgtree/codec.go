package msgtree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// marshalJSON encodes v without escaping HTML characters, which are common
// in messages.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalJSON implements json.Marshaler. Keys come out sorted.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.leaf == nil {
		children := n.children
		if children == nil {
			children = map[string]*Node{}
		}
		return marshalJSON(children)
	}

	l := n.leaf
	m := make(map[string]any, 4+len(l.Translations)+len(l.Extra))
	for k, raw := range l.Extra {
		m[k] = json.RawMessage(raw)
	}
	for locale, s := range l.Translations {
		m[locale] = s
	}
	m[IDKey] = l.Key
	if l.ID != "" {
		m["id"] = l.ID
	}
	if l.DefaultMessage != "" {
		m["defaultMessage"] = l.DefaultMessage
	}
	if l.Description != "" {
		m["description"] = l.Description
	}
	if l.File != "" {
		m["file"] = l.File
	}
	for name, p := range map[string]*int{"start": l.Start, "end": l.End, "line": l.Line, "col": l.Col} {
		if p != nil {
			m[name] = *p
		}
	}
	if l.Meta != nil {
		m["meta"] = l.Meta
	}
	return marshalJSON(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeNode(data)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

// DecodeNode parses a tree. Objects with a truthy __id__ become leaves,
// other objects interior nodes; any other JSON value fails with
// ErrNotObject.
func DecodeNode(data []byte) (*Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if len(trimmed) > 0 && !json.Valid(trimmed) {
			return nil, fmt.Errorf("decode node: invalid JSON")
		}
		return nil, ErrNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}

	if key, ok := leafKey(fields[IDKey]); ok {
		return NewLeaf(decodeLeaf(key, fields)), nil
	}

	n := NewInterior()
	for name, raw := range fields {
		child, err := DecodeNode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		n.children[name] = child
	}
	return n, nil
}

// leafKey reports whether raw is a truthy __id__ value and returns it as a
// string.
func leafKey(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case bool:
		return "true", t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), t != 0
	case nil:
		return "", false
	default:
		return string(raw), true
	}
}

func decodeLeaf(key string, fields map[string]json.RawMessage) *Leaf {
	l := &Leaf{Key: key}
	extra := func(name string, raw json.RawMessage) {
		if l.Extra == nil {
			l.Extra = make(map[string][]byte)
		}
		l.Extra[name] = raw
	}
	str := func(raw json.RawMessage) (string, bool) {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err == nil
	}
	num := func(raw json.RawMessage) (*int, bool) {
		var i int
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, false
		}
		return &i, true
	}

	for name, raw := range fields {
		switch name {
		case IDKey:
		case "id", "defaultMessage", "description", "file":
			s, ok := str(raw)
			if !ok {
				extra(name, raw)
				continue
			}
			switch name {
			case "id":
				l.ID = s
			case "defaultMessage":
				l.DefaultMessage = s
			case "description":
				l.Description = s
			case "file":
				l.File = s
			}
		case "start", "end", "line", "col":
			p, ok := num(raw)
			if !ok {
				extra(name, raw)
				continue
			}
			switch name {
			case "start":
				l.Start = p
			case "end":
				l.End = p
			case "line":
				l.Line = p
			case "col":
				l.Col = p
			}
		case "meta":
			var meta map[string]string
			if err := json.Unmarshal(raw, &meta); err != nil {
				extra(name, raw)
				continue
			}
			l.Meta = meta
		default:
			if s, ok := str(raw); ok {
				if l.Translations == nil {
					l.Translations = make(map[string]string)
				}
				l.Translations[name] = s
				continue
			}
			extra(name, raw)
		}
	}
	return l
}

// ReadJSONOrDefault returns def when path does not exist or is empty, and
// the decoded content otherwise. Malformed content is an error.
func ReadJSONOrDefault[T any](path string, def T) (T, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return def, nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// ReadTree loads a serialised tree from path.
func ReadTree(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	n, err := DecodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return n, nil
}

// Serialize renders v as 2-space indented JSON.
func Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteJSON serialises v to path with a trailing newline, creating parent
// directories as needed.
func WriteJSON(path string, v any) error {
	data, err := Serialize(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
