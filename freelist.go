// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// node is the intrusive doubly-linked list link overlaid onto the first two
// payload words of a free block. It is read and written directly at the
// block's payload address, the same overlay trick cznic/memory uses for its
// own free lists (there called node{prev, next *node}), except our pred/succ
// are scoped to one size-class bucket rather than one fixed slab size.
type node struct {
	pred, succ *node
}

func nodeAt(p unsafe.Pointer) *node { return (*node)(p) }

// bucketIndex returns the size class for size: bucket k (k<12) holds sizes
// in [2^k, 2^(k+1)), bucket 12 holds everything at or above 2^12. Computed
// via mathutil.BitLenUint64 the same way cznic/memory derives its own
// slab-size class from a requested allocation size.
func bucketIndex(size uint64) int {
	idx := 0
	if size > 1 {
		idx = mathutil.BitLenUint64(size) - 1
	}
	if idx > numBuckets-1 {
		idx = numBuckets - 1
	}
	return idx
}

// freelistInsert splices the free block at bp (of the given size) into its
// bucket, keeping the bucket's list in ascending size order.
func (a *Allocator) freelistInsert(bp unsafe.Pointer, size uint64) {
	idx := bucketIndex(size)
	n := nodeAt(bp)

	var prev *node
	cur := a.buckets[idx]
	for cur != nil && sizeAt(unsafe.Pointer(cur)) < size {
		prev = cur
		cur = cur.succ
	}

	n.pred = prev
	n.succ = cur
	if cur != nil {
		cur.pred = n
	}
	if prev != nil {
		prev.succ = n
	} else {
		a.buckets[idx] = n
	}
}

// freelistDelete unlinks the free block at bp from its bucket.
func (a *Allocator) freelistDelete(bp unsafe.Pointer) {
	size := sizeAt(bp)
	idx := bucketIndex(size)
	n := nodeAt(bp)

	if n.pred != nil {
		n.pred.succ = n.succ
	} else {
		a.buckets[idx] = n.succ
	}
	if n.succ != nil {
		n.succ.pred = n.pred
	}
	n.pred, n.succ = nil, nil
}
