// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "unsafe"

// coalesce merges the free block at bp with any free neighbors. bp must
// already be free and already inserted into its bucket (both extend and
// free insert before calling coalesce, since a merge needs to delete the
// block from whatever bucket its pre-merge size put it in before the size
// changes). Returns the payload pointer of the resulting, already-inserted
// block — bp itself, or the previous neighbor when it absorbs bp.
func (a *Allocator) coalesce(bp unsafe.Pointer) unsafe.Pointer {
	size := sizeAt(bp)
	prev := prevBlockPtr(bp)
	next := nextBlockPtr(bp, size)
	prevAlloc := allocAt(prev)
	nextAlloc := allocAt(next)

	switch {
	case prevAlloc && nextAlloc:
		return bp

	case prevAlloc && !nextAlloc:
		nextSize := sizeAt(next)
		a.freelistDelete(bp)
		a.freelistDelete(next)
		merged := size + nextSize
		writeBlock(bp, merged, false)
		a.freelistInsert(bp, merged)
		return bp

	case !prevAlloc && nextAlloc:
		prevSize := sizeAt(prev)
		a.freelistDelete(bp)
		a.freelistDelete(prev)
		merged := size + prevSize
		writeBlock(prev, merged, false)
		a.freelistInsert(prev, merged)
		return prev

	default: // !prevAlloc && !nextAlloc
		prevSize := sizeAt(prev)
		nextSize := sizeAt(next)
		a.freelistDelete(bp)
		a.freelistDelete(prev)
		a.freelistDelete(next)
		merged := size + prevSize + nextSize
		writeBlock(prev, merged, false)
		a.freelistInsert(prev, merged)
		return prev
	}
}
