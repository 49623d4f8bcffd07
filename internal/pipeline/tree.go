package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	harvesterr "tabnet-harvester/internal/errors"
)

// Value is one node of the result tree: a Leaf or a *Tree.
type Value interface {
	isValue()
}

// Leaf is a numeric value at the bottom of the tree
type Leaf float64

func (Leaf) isValue() {}

// Tree is a mapping node. A key that holds a *Tree never becomes a Leaf and
// vice versa; the mutators return a TREE error instead of replacing.
//
// Tree is not safe for concurrent use. During a stage it is owned by the
// scheduler's collector goroutine.
type Tree struct {
	children map[string]Value
}

// NewTree creates an empty mapping node
func NewTree() *Tree {
	return &Tree{children: make(map[string]Value)}
}

func (*Tree) isValue() {}

// Len returns the number of direct children
func (t *Tree) Len() int {
	return len(t.children)
}

// Keys returns the direct child keys in sorted order
func (t *Tree) Keys() []string {
	keys := make([]string, 0, len(t.children))
	for k := range t.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the child stored at key
func (t *Tree) Get(key string) (Value, bool) {
	v, ok := t.children[key]
	return v, ok
}

// Child returns the mapping node at key, if key holds one
func (t *Tree) Child(key string) (*Tree, bool) {
	sub, ok := t.children[key].(*Tree)
	return sub, ok
}

// Leaf returns the numeric value at key, if key holds one
func (t *Tree) Leaf(key string) (float64, bool) {
	v, ok := t.children[key].(Leaf)
	return float64(v), ok
}

// Lookup follows path from t and returns the value at its end
func (t *Tree) Lookup(path ...string) (Value, bool) {
	var cur Value = t
	for _, seg := range path {
		node, ok := cur.(*Tree)
		if !ok {
			return nil, false
		}
		if cur, ok = node.children[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetOrCreatePath descends along path, creating an empty mapping node for each
// missing segment, and returns the node at the end. An existing mapping node is
// always reused, so siblings written earlier survive. A segment that already
// holds a Leaf is a KIND_MISMATCH error.
func (t *Tree) GetOrCreatePath(path ...string) (*Tree, error) {
	cur := t
	for i, seg := range path {
		switch v := cur.children[seg].(type) {
		case nil:
			next := NewTree()
			cur.children[seg] = next
			cur = next
		case *Tree:
			cur = v
		default:
			return nil, harvesterr.Newf(harvesterr.ErrCategoryTree, harvesterr.CodeKindMismatch,
				"segment %q of %s holds a leaf", seg, strings.Join(path[:i+1], "/"))
		}
	}
	return cur, nil
}

// SetLeaf writes v at key, replacing a previous leaf. A key that holds a
// mapping node is a KIND_MISMATCH error.
func (t *Tree) SetLeaf(key string, v float64) error {
	if _, isTree := t.children[key].(*Tree); isTree {
		return harvesterr.Newf(harvesterr.ErrCategoryTree, harvesterr.CodeKindMismatch, "key %q holds a mapping node", key)
	}
	t.children[key] = Leaf(v)
	return nil
}

// SetPath writes v under key at the node reached by path
func (t *Tree) SetPath(path []string, key string, v float64) error {
	node, err := t.GetOrCreatePath(path...)
	if err != nil {
		return err
	}
	return node.SetLeaf(key, v)
}

// LeafCount returns the number of leaves below t
func (t *Tree) LeafCount() int {
	n := 0
	for _, v := range t.children {
		switch c := v.(type) {
		case Leaf:
			n++
		case *Tree:
			n += c.LeafCount()
		}
	}
	return n
}

// Clone returns a deep copy of t
func (t *Tree) Clone() *Tree {
	out := &Tree{children: make(map[string]Value, len(t.children))}
	for k, v := range t.children {
		if sub, ok := v.(*Tree); ok {
			out.children[k] = sub.Clone()
		} else {
			out.children[k] = v
		}
	}
	return out
}

// MergeOptions controls leaf collisions during MergeInto
type MergeOptions struct {
	// Strict rejects two different values for the same leaf instead of letting
	// the source win.
	Strict bool
}

// MergeInto deep-merges src into dst and returns dst. Where both sides hold a
// mapping node the merge recurses; otherwise the source value wins. Leaves are
// never combined arithmetically. A key that is a mapping on one side and a
// leaf on the other is left untouched in dst and reported; the remaining keys
// are still merged. src is copied, never aliased.
func MergeInto(dst, src *Tree, opts MergeOptions) (*Tree, error) {
	return dst, mergeAt(dst, src, opts, nil)
}

func mergeAt(dst, src *Tree, opts MergeOptions, path []string) error {
	var errs []error
	for key, sv := range src.children {
		here := append(path[:len(path):len(path)], key)
		dv, exists := dst.children[key]

		switch s := sv.(type) {
		case *Tree:
			if !exists {
				dst.children[key] = s.Clone()
				continue
			}
			d, ok := dv.(*Tree)
			if !ok {
				errs = append(errs, kindMismatch(here))
				continue
			}
			if err := mergeAt(d, s, opts, here); err != nil {
				errs = append(errs, err)
			}
		case Leaf:
			if exists {
				d, ok := dv.(Leaf)
				if !ok {
					errs = append(errs, kindMismatch(here))
					continue
				}
				if opts.Strict && d != s {
					errs = append(errs, harvesterr.Newf(harvesterr.ErrCategoryTree, harvesterr.CodeLeafConflict,
						"%s: %v != %v", strings.Join(here, "/"), float64(d), float64(s)))
					continue
				}
			}
			dst.children[key] = s
		}
	}
	return errors.Join(errs...)
}

func kindMismatch(path []string) error {
	return harvesterr.Newf(harvesterr.ErrCategoryTree, harvesterr.CodeKindMismatch,
		"%s is a mapping on one side and a leaf on the other", strings.Join(path, "/"))
}

// MarshalJSON renders the tree as nested objects with sorted keys
func (t *Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Tree) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, key := range t.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		switch v := t.children[key].(type) {
		case *Tree:
			if err := v.encode(buf); err != nil {
				return err
			}
		case Leaf:
			buf.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 64))
		}
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON rebuilds a tree from nested objects of numbers
func (t *Tree) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.children = make(map[string]Value, len(raw))
	for key, msg := range raw {
		trimmed := bytes.TrimSpace(msg)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			sub := NewTree()
			if err := sub.UnmarshalJSON(trimmed); err != nil {
				return err
			}
			t.children[key] = sub
			continue
		}
		var f float64
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return harvesterr.Wrap(harvesterr.ErrCategoryTree, harvesterr.CodeKindMismatch, "leaf "+key+" is not a number", err)
		}
		t.children[key] = Leaf(f)
	}
	return nil
}
