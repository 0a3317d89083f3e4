// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "unsafe"

// Allocator manages one independent, monotonically growable heap: a
// prologue/epilogue-bounded run of boundary-tagged blocks indexed by a
// 13-bucket segregated free list. Its zero value is ready for use — the
// heap is lazily created on the first Malloc or Free, the same convention
// cznic/memory's own Allocator follows.
type Allocator struct {
	reserve int // reservation size passed to the provider; 0 means defaultReserve.

	mem         *provider
	heapStart   unsafe.Pointer
	buckets     [numBuckets]*node
	initialized bool

	allocs int // live allocation count, for diagnostics/tests.
	bytes  int // bytes acquired from the provider so far.
}

// NewAllocator returns an Allocator whose heap may grow up to reserve bytes.
// A non-positive reserve falls back to defaultReserve. The returned
// Allocator is not yet initialized; Init happens lazily on first use, or
// may be called explicitly.
func NewAllocator(reserve int) *Allocator {
	return &Allocator{reserve: reserve}
}

// Init acquires the initial heap reservation and writes the prologue and
// epilogue sentinels. It is idempotent and is called automatically by
// Malloc and Free; callers only need it to pre-warm the heap or to check
// for out-of-memory at a controlled point.
func (a *Allocator) Init() bool {
	if a.initialized {
		return true
	}
	if a.mem == nil {
		mem, err := newProvider(a.reserve)
		if err != nil {
			return false
		}
		a.mem = mem
	}
	if err := a.heapInit(); err != nil {
		return false
	}
	a.initialized = true
	return true
}

// Close releases the OS mapping backing a's heap and resets a to an
// uninitialized state; only its reserve setting is kept. It is not
// necessary to Close an Allocator when exiting a process.
func (a *Allocator) Close() error {
	var err error
	if a.mem != nil {
		err = a.mem.close()
	}
	*a = Allocator{reserve: a.reserve}
	return err
}

// HeapLow and HeapHigh report the inclusive bounds of the region the
// provider currently manages (spec.md §6's heap_low/heap_high).
func (a *Allocator) HeapLow() unsafe.Pointer {
	if a.mem == nil {
		return nil
	}
	return a.mem.low()
}

func (a *Allocator) HeapHigh() unsafe.Pointer {
	if a.mem == nil {
		return nil
	}
	return a.mem.high()
}

// heapInit lays down the four-word skeleton (alignment pad, prologue
// header, prologue footer, epilogue header) and performs the first
// CHUNKSIZE extension.
func (a *Allocator) heapInit() error {
	base, err := a.mem.sbrk(4 * wordSize)
	if err != nil {
		return err
	}
	a.bytes += 4 * wordSize

	storeWord(base, 0) // alignment padding
	prologueHdr := addOffset(base, wordSize)
	storeWord(prologueHdr, pack(dsize, true))
	prologueFtr := addOffset(prologueHdr, wordSize)
	storeWord(prologueFtr, pack(dsize, true))
	epilogueHdr := addOffset(prologueFtr, wordSize)
	storeWord(epilogueHdr, pack(0, true))

	a.heapStart = addOffset(epilogueHdr, wordSize)
	a.buckets = [numBuckets]*node{}

	if _, err := a.extend(chunkSize); err != nil {
		return err
	}
	return nil
}

// extend grows the heap by at least bytes (rounded up to a 16-byte
// multiple), writes a fresh free block over the old epilogue, writes a new
// epilogue past it, inserts the new block into the free-list index, and
// coalesces it with whatever free block preceded it. Returns the resulting
// (already-inserted) block's payload pointer.
func (a *Allocator) extend(bytes int) (unsafe.Pointer, error) {
	bytes = roundup(bytes, alignment)

	bp, err := a.mem.sbrk(bytes)
	if err != nil {
		return nil, err
	}
	a.bytes += bytes

	writeBlock(bp, uint64(bytes), false)
	storeWord(headerPtr(nextBlockPtr(bp, uint64(bytes))), pack(0, true)) // new epilogue

	a.freelistInsert(bp, uint64(bytes))
	return a.coalesce(bp), nil
}
