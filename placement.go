// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "unsafe"

// adjustSize rounds a requested payload size up to a legal block size:
// header+footer overhead plus 16-byte alignment, minimum 32. Callers must
// have already rejected size == 0 (the spurious-request case, spec.md §4.5).
func adjustSize(size int) uint64 {
	if size <= dsize {
		return uint64(2 * dsize)
	}
	return uint64(dsize) * uint64((size+dsize+dsize-1)/dsize)
}

// findFit scans the segregated free-list index starting at asize's own
// bucket, returning the first sufficiently large block. Within the starting
// bucket the (ascending-sorted) list is walked for the first fit; any later
// bucket's head is already sufficient, since every block in a strictly
// larger size class exceeds asize by construction.
func (a *Allocator) findFit(asize uint64) unsafe.Pointer {
	start := bucketIndex(asize)
	for idx := start; idx < numBuckets; idx++ {
		for n := a.buckets[idx]; n != nil; n = n.succ {
			p := unsafe.Pointer(n)
			if sizeAt(p) >= asize {
				return p
			}
		}
	}
	return nil
}

// place removes bp from its bucket and commits it to the allocated state at
// size asize, splitting off a free remainder when at least minBlock bytes
// would be left over.
func (a *Allocator) place(bp unsafe.Pointer, asize uint64) {
	csize := sizeAt(bp)
	a.freelistDelete(bp)

	if csize-asize >= minBlock {
		writeBlock(bp, asize, true)
		rem := nextBlockPtr(bp, asize)
		remSize := csize - asize
		writeBlock(rem, remSize, false)
		a.freelistInsert(rem, remSize)
		return
	}

	writeBlock(bp, csize, true)
}
