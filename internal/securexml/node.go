package securexml

import "strings"

// Document is a parsed XML tree plus metadata about how the raw bytes were
// decoded. FallbackUsed is set when the declared (or assumed) encoding did
// not hold and a fallback from the Cyrillic ladder was applied; callers
// record it as a warning-severity issue.
type Document struct {
	Root         *Node
	Encoding     string
	FallbackUsed bool
}

// Node is a single XML element. Namespaces are deliberately flattened to
// local names: UPD generators disagree on prefixes and default namespaces,
// and extraction works on local names only.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
	text     strings.Builder
}

// Text returns the element's own character data, whitespace-trimmed.
func (n *Node) Text() string {
	return strings.TrimSpace(n.text.String())
}

// Attr returns the attribute value and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// Child returns the first direct child with the given local name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Find descends through the given sequence of child names and returns the
// node at the end of the path, or nil if any step is missing.
func (n *Node) Find(path ...string) *Node {
	cur := n
	for _, name := range path {
		cur = cur.Child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// FindAll descends through path like Find but collects every matching node
// at the final step.
func (n *Node) FindAll(path ...string) []*Node {
	if len(path) == 0 {
		return nil
	}
	parent := n
	if len(path) > 1 {
		parent = n.Find(path[:len(path)-1]...)
		if parent == nil {
			return nil
		}
	}
	var out []*Node
	for _, c := range parent.Children {
		if c.Name == path[len(path)-1] {
			out = append(out, c)
		}
	}
	return out
}

// First searches the subtree depth-first for the first element with the
// given local name, including n itself.
func (n *Node) First(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.First(name); found != nil {
			return found
		}
	}
	return nil
}
