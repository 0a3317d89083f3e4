// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"fmt"
	"os"
	"unsafe"
)

// trace gates the allocator's debug diagnostics, the same convention
// cznic/memory uses throughout its own Malloc/Free/Realloc/Calloc (its
// `if trace { ... }` blocks around os.Stderr output). It is off by default;
// tests flip it to chase down a failing invariant.
var trace = false

// CheckHeap walks the heap from heapStart and verifies every invariant
// spec.md §4.7/§8 requires: alignment, header/footer agreement, minimum
// block size, absence of adjacent free blocks, epilogue presence, and that
// every bucket holds only free blocks of the right size class in ascending
// order. It always performs the walk (callers rely on the boolean result);
// trace only gates whether failures are also reported to stderr, which is
// the "no-op when debug disabled" spec.md §2 describes for this component.
func (a *Allocator) CheckHeap(line int) bool {
	if !a.initialized {
		return true
	}

	ok := true
	bp := a.heapStart
	for {
		size := sizeAt(bp)
		if size == 0 {
			break
		}
		if uintptr(bp)%alignment != 0 {
			a.diagf(line, "block %p is not %d-byte aligned", bp, alignment)
			ok = false
		}
		if size < minBlock || size%alignment != 0 {
			a.diagf(line, "block %p has invalid size %d", bp, size)
			ok = false
		}
		if loadWord(headerPtr(bp)) != loadWord(footerPtr(bp, size)) {
			a.diagf(line, "block %p: header/footer disagree", bp)
			ok = false
		}
		next := nextBlockPtr(bp, size)
		if !allocAt(bp) && sizeAt(next) != 0 && !allocAt(next) {
			a.diagf(line, "adjacent free blocks at %p and %p", bp, next)
			ok = false
		}
		bp = next
	}
	if !allocAt(bp) || sizeAt(bp) != 0 {
		a.diagf(line, "missing or corrupt epilogue at %p", bp)
		ok = false
	}

	for idx := 0; idx < numBuckets; idx++ {
		prevSize := uint64(0)
		for n := a.buckets[idx]; n != nil; n = n.succ {
			p := unsafe.Pointer(n)
			size := sizeAt(p)
			if allocAt(p) {
				a.diagf(line, "allocated block %p found in free bucket %d", p, idx)
				ok = false
			}
			if bucketIndex(size) != idx {
				a.diagf(line, "block %p of size %d sits in wrong bucket %d", p, size, idx)
				ok = false
			}
			if size < prevSize {
				a.diagf(line, "bucket %d is out of order at %p", idx, p)
				ok = false
			}
			prevSize = size
		}
	}
	return ok
}

func (a *Allocator) diagf(line int, format string, args ...interface{}) {
	if !trace {
		return
	}
	fmt.Fprintf(os.Stderr, "heap: check_invariants(%d): ", line)
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
}
