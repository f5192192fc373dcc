package router

import "strings"

const noNode = -1

// node is one path segment. Nodes live in the tree's arena and refer to
// their children by index.
type node[V any] struct {
	value    V
	bound    bool
	children map[string]int
}

// PathTree stores values keyed by slash-separated paths.
//
// Nodes are kept in a slice and released nodes are recycled through a free
// list, so the tree holds no pointers between nodes. PathTree is not safe for
// concurrent use.
type PathTree[V any] struct {
	nodes []node[V]
	free  []int
	size  int
}

// NewPathTree returns an empty tree.
func NewPathTree[V any]() *PathTree[V] {
	t := &PathTree[V]{}
	t.alloc()
	return t
}

func (t *PathTree[V]) alloc() int {
	if n := len(t.free); n > 0 {
		i := t.free[n-1]
		t.free = t.free[:n-1]
		return i
	}
	t.nodes = append(t.nodes, node[V]{})
	return len(t.nodes) - 1
}

// release returns the subtree rooted at i to the free list.
func (t *PathTree[V]) release(i int) {
	n := &t.nodes[i]
	for _, child := range n.children {
		t.release(child)
	}
	if n.bound {
		t.size--
	}
	t.nodes[i] = node[V]{}
	t.free = append(t.free, i)
}

// clearChildren releases every descendant of i.
func (t *PathTree[V]) clearChildren(i int) {
	children := t.nodes[i].children
	t.nodes[i].children = nil
	for _, child := range children {
		t.release(child)
	}
}

// Insert binds v at path, dropping all values bound below it. It returns the
// value previously bound at path, if any.
func (t *PathTree[V]) Insert(path string, v V) (old V, replaced bool) {
	cur := 0
	for _, seg := range splitPath(path) {
		next, ok := t.nodes[cur].children[seg]
		if !ok {
			next = t.alloc()
			if t.nodes[cur].children == nil {
				t.nodes[cur].children = make(map[string]int)
			}
			t.nodes[cur].children[seg] = next
		}
		cur = next
	}

	t.clearChildren(cur)
	n := &t.nodes[cur]
	old, replaced = n.value, n.bound
	if !n.bound {
		t.size++
	}
	n.value, n.bound = v, true
	return old, replaced
}

// Remove unbinds path and drops everything below it. Removing "/" empties
// the tree.
func (t *PathTree[V]) Remove(path string) (old V, removed bool) {
	segs := splitPath(path)
	if len(segs) == 0 {
		old, removed = t.nodes[0].value, t.nodes[0].bound
		t.clearChildren(0)
		if removed {
			t.size--
		}
		t.nodes[0] = node[V]{}
		return old, removed
	}

	parent := 0
	for _, seg := range segs[:len(segs)-1] {
		next, ok := t.nodes[parent].children[seg]
		if !ok {
			return old, false
		}
		parent = next
	}
	last := segs[len(segs)-1]
	target, ok := t.nodes[parent].children[last]
	if !ok {
		return old, false
	}
	old, removed = t.nodes[target].value, t.nodes[target].bound
	delete(t.nodes[parent].children, last)
	t.release(target)
	return old, removed
}

// Match is the result of a longest prefix lookup.
type Match[V any] struct {
	Value V

	// Prefix is the matched part of the path in canonical form, "/" for
	// the root.
	Prefix string

	// Rest is the unmatched remainder, "/" when nothing is left. A trailing
	// slash on the looked up path is kept.
	Rest string
}

// Lookup returns the value bound at the longest prefix of path that has one.
func (t *PathTree[V]) Lookup(path string) (m Match[V], ok bool) {
	best := noNode
	depth := 0
	segs := splitPath(path)
	if t.nodes[0].bound {
		best = 0
	}

	cur := 0
	for i, seg := range segs {
		next, found := t.nodes[cur].children[seg]
		if !found {
			break
		}
		cur = next
		if t.nodes[cur].bound {
			best = cur
			depth = i + 1
		}
	}
	if best == noNode {
		return m, false
	}

	m.Value = t.nodes[best].value
	m.Prefix = "/" + strings.Join(segs[:depth], "/")
	m.Rest = "/" + strings.Join(segs[depth:], "/")
	if depth < len(segs) && strings.HasSuffix(path, "/") {
		m.Rest += "/"
	}
	return m, true
}

// Get returns the value bound exactly at path.
func (t *PathTree[V]) Get(path string) (v V, ok bool) {
	cur := 0
	for _, seg := range splitPath(path) {
		next, found := t.nodes[cur].children[seg]
		if !found {
			return v, false
		}
		cur = next
	}
	return t.nodes[cur].value, t.nodes[cur].bound
}

// Len returns the number of bound paths.
func (t *PathTree[V]) Len() int {
	return t.size
}

// splitPath splits a path into its non-empty segments.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	segs := strings.Split(path, "/")
	out := segs[:0]
	for _, s := range segs {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
