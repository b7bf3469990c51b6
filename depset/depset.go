// Copyright 2021 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package depset implements an ordered set that supports merging transitive
// contributions from dependencies without flattening them more than once,
// modelled after Bazel's depsets
// (https://docs.bazel.build/versions/master/skylark/depsets.html).
//
// A DepSet is constructed from a list of direct elements and a list of
// DepSets inherited from dependencies, and is immutable once built.  The
// traversal order is fixed at construction time: PREORDER lists direct
// elements before inherited ones, POSTORDER lists inherited elements before
// direct ones.  Within each group, insertion order is preserved.  Duplicate
// elements keep their first position and are dropped from later ones, so a
// diamond in the dependency graph contributes its elements only once.
package depset

import "fmt"

// Order is the traversal order of a DepSet.  DepSets can only be merged
// into DepSets of the same Order.
type Order int

const (
	PREORDER Order = iota
	POSTORDER
)

func (o Order) String() string {
	switch o {
	case PREORDER:
		return "PREORDER"
	case POSTORDER:
		return "POSTORDER"
	default:
		panic(fmt.Errorf("unknown order %d", int(o)))
	}
}

// A DepSet is an immutable ordered set of elements of type T.  The zero
// value is an empty PREORDER DepSet.
type DepSet[T comparable] struct {
	order Order
	elems []T
}

// New returns a DepSet with the given order that contains the elements of
// direct followed (PREORDER) or preceded (POSTORDER) by the elements of each
// DepSet in transitive, deduplicated on first occurrence.
func New[T comparable](order Order, direct []T, transitive []DepSet[T]) DepSet[T] {
	var b Builder[T]
	b.order = order
	return b.Direct(direct...).Transitive(transitive...).Build()
}

// A Builder is used to construct a DepSet incrementally.  Direct and
// Transitive may be called any number of times and in any order; elements
// added by repeated calls are concatenated in call order within their group.
type Builder[T comparable] struct {
	order      Order
	direct     []T
	transitive []DepSet[T]
}

// NewBuilder returns a Builder to create a DepSet with the given order.
func NewBuilder[T comparable](order Order) *Builder[T] {
	return &Builder[T]{order: order}
}

// Direct adds direct elements to the DepSet being built.
func (b *Builder[T]) Direct(direct ...T) *Builder[T] {
	b.direct = append(b.direct, direct...)
	return b
}

// Transitive adds DepSets of dependencies to the DepSet being built.  All
// of them must have the same order as the DepSet being built.
func (b *Builder[T]) Transitive(transitive ...DepSet[T]) *Builder[T] {
	for _, t := range transitive {
		if len(t.elems) > 0 && t.order != b.order {
			panic(fmt.Errorf("transitive set has order %s, expected %s",
				t.order, b.order))
		}
	}
	b.transitive = append(b.transitive, transitive...)
	return b
}

// Build returns the DepSet being built by this Builder.  The Builder
// retains its contents for creating more DepSets.
func (b *Builder[T]) Build() DepSet[T] {
	seen := make(map[T]bool)
	var elems []T

	add := func(list []T) {
		for _, e := range list {
			if !seen[e] {
				seen[e] = true
				elems = append(elems, e)
			}
		}
	}

	switch b.order {
	case PREORDER:
		add(b.direct)
		for _, t := range b.transitive {
			add(t.elems)
		}
	case POSTORDER:
		for _, t := range b.transitive {
			add(t.elems)
		}
		add(b.direct)
	default:
		panic(fmt.Errorf("unknown order %d", int(b.order)))
	}

	return DepSet[T]{
		order: b.order,
		elems: elems,
	}
}

// ToList returns the DepSet flattened to a list in its traversal order.
// The returned list is a copy, callers may modify it.
func (d DepSet[T]) ToList() []T {
	if len(d.elems) == 0 {
		return nil
	}
	list := make([]T, len(d.elems))
	copy(list, d.elems)
	return list
}

// Len returns the number of unique elements in the DepSet.
func (d DepSet[T]) Len() int {
	return len(d.elems)
}
