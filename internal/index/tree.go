package index

import (
	"slices"
	"strings"

	"github.com/babarot/stowage/internal/core/types"
)

// node is one path segment. Nodes without an id are intermediate
// directories of entries that belong to the other index.
type node struct {
	name     string
	parent   *node
	children map[string]*node
	id       types.ID
}

// tree mirrors the mapped paths as a hierarchy so that the entries
// below a folder can be enumerated without scanning every key
type tree struct {
	root *node
}

func newTree() *tree {
	return &tree{root: &node{children: make(map[string]*node)}}
}

func (t *tree) find(p string) *node {
	n := t.root
	for _, seg := range types.Segments(p) {
		child, ok := n.children[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

func (t *tree) set(p string, id types.ID) {
	n := t.root
	for _, seg := range types.Segments(p) {
		child, ok := n.children[seg]
		if !ok {
			child = &node{name: seg, parent: n, children: make(map[string]*node)}
			n.children[seg] = child
		}
		n = child
	}
	n.id = id
}

func (t *tree) unset(p string) {
	n := t.find(p)
	if n == nil {
		return
	}
	n.id = ""
	for n != t.root && n.id.IsZero() && len(n.children) == 0 {
		delete(n.parent.children, n.name)
		n = n.parent
	}
}

// children returns the mapped entries directly below dir, sorted by path
func (t *tree) children(dir string) []types.Mapping {
	n := t.find(dir)
	if n == nil {
		return nil
	}
	var out []types.Mapping
	for name, child := range n.children {
		if !child.id.IsZero() {
			out = append(out, types.Mapping{Path: types.JoinPath(dir, name), ID: child.id})
		}
	}
	sortMappings(out)
	return out
}

// walk returns every mapped entry at or below dir, sorted by path
func (t *tree) walk(dir string) []types.Mapping {
	n := t.find(dir)
	if n == nil {
		return nil
	}
	var out []types.Mapping
	var visit func(n *node, p string)
	visit = func(n *node, p string) {
		if !n.id.IsZero() {
			out = append(out, types.Mapping{Path: p, ID: n.id})
		}
		for name, child := range n.children {
			visit(child, types.JoinPath(p, name))
		}
	}
	visit(n, dir)
	sortMappings(out)
	return out
}

func sortMappings(m []types.Mapping) {
	slices.SortFunc(m, func(a, b types.Mapping) int {
		return strings.Compare(a.Path, b.Path)
	})
}
