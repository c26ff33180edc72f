// Package msgtree converts flat id-keyed messages into the nested tree
// persisted in the extracted-messages file, and compiles that tree into
// per-locale catalogs.
package msgtree

import (
	"errors"
	"sort"

	"g11n/internal/extract"
)

// IDKey is the JSON key marking a leaf and holding its full message id.
const IDKey = "__id__"

// ErrNotObject is returned when a tree node is not a JSON object.
var ErrNotObject = errors.New("msgtree: node is not an object")

// Leaf is one message: its descriptor, its full id and the translations
// saved for it, keyed by locale.
type Leaf struct {
	// Key is the full dotted id, serialised as __id__.
	Key string
	extract.Descriptor
	Translations map[string]string
	// Extra keeps leaf fields that are neither descriptor fields nor
	// string translations, so they survive a round trip.
	Extra map[string][]byte
}

// Resolve picks the display text of the leaf for locale: the translation,
// then the default message, then the descriptor id, then key.
func (l *Leaf) Resolve(locale, key string) string {
	if s := l.Translations[locale]; s != "" {
		return s
	}
	if l.DefaultMessage != "" {
		return l.DefaultMessage
	}
	if l.ID != "" {
		return l.ID
	}
	return key
}

// Node is either an interior node holding named children or a leaf. The two
// never mix.
type Node struct {
	leaf     *Leaf
	children map[string]*Node
}

// NewInterior returns an empty interior node.
func NewInterior() *Node {
	return &Node{children: make(map[string]*Node)}
}

// NewLeaf wraps l in a node.
func NewLeaf(l *Leaf) *Node {
	return &Node{leaf: l}
}

func (n *Node) IsLeaf() bool { return n.leaf != nil }

// Leaf returns the leaf of n, nil for interior nodes.
func (n *Node) Leaf() *Leaf { return n.leaf }

// Child returns the named child, nil if absent or if n is a leaf.
func (n *Node) Child(name string) *Node { return n.children[name] }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Keys returns the child names in sorted order.
func (n *Node) Keys() []string {
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set attaches child under name. It panics on a leaf.
func (n *Node) Set(name string, child *Node) {
	if n.leaf != nil {
		panic("msgtree: Set on a leaf node")
	}
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	n.children[name] = child
}
