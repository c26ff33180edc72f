package msgtree

// Flatten collects the leaves under n into acc, keyed by their dot path
// below prefix. Leaves are never descended into. acc may be nil.
func Flatten(n *Node, acc map[string]*Leaf, prefix string) (map[string]*Leaf, error) {
	if n == nil {
		return acc, ErrNotObject
	}
	if acc == nil {
		acc = make(map[string]*Leaf)
	}
	if n.IsLeaf() {
		acc[prefix] = n.leaf
		return acc, nil
	}
	for _, key := range n.Keys() {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if _, err := Flatten(n.children[key], acc, path); err != nil {
			return acc, err
		}
	}
	return acc, nil
}

// Compile resolves every leaf of n to its display text for locale.
func Compile(n *Node, locale string) (map[string]string, error) {
	leaves, err := Flatten(n, nil, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(leaves))
	for key, leaf := range leaves {
		out[key] = leaf.Resolve(locale, key)
	}
	return out, nil
}
