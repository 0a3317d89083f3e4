// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heap implements a general-purpose dynamic storage allocator
// backed by a monotonically growable byte region: a heap of boundary-tagged
// blocks, immediately coalesced on free, indexed by a 13-bucket segregated
// free list for sublinear best-size-in-class placement.
package heap

import (
	"fmt"
	"os"
	"reflect"
	"unsafe"
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// allocate is the shared core of Malloc and UnsafeMalloc: size-adjust,
// find-or-extend, place, and report the usable payload size of the result.
func (a *Allocator) allocate(size int) (bp unsafe.Pointer, usable uint64, err error) {
	if size < 0 {
		panic("heap: invalid malloc size")
	}
	if !a.initialized {
		if !a.Init() {
			return nil, 0, fmt.Errorf("heap: init failed")
		}
	}
	if size == 0 {
		return nil, 0, nil
	}

	asize := adjustSize(size)
	bp = a.findFit(asize)
	if bp == nil {
		bp, err = a.extend(maxInt(int(asize), chunkSize))
		if err != nil {
			return nil, 0, err
		}
	}
	a.place(bp, asize)
	a.allocs++
	return bp, sizeAt(bp) - dsize, nil
}

// free is the shared core of Free and UnsafeFree: clear the alloc bit,
// reinsert into the free-list index, and coalesce with any free neighbors.
func (a *Allocator) free(bp unsafe.Pointer) {
	if !a.initialized && !a.Init() {
		return
	}
	size := sizeAt(bp)
	writeBlock(bp, size, false)
	a.freelistInsert(bp, size)
	a.coalesce(bp)
	a.allocs--
}

// Malloc allocates size bytes and returns a byte slice over the new
// payload. The memory is not initialized. Malloc panics for size < 0 and
// returns (nil, nil) for zero size, mirroring cznic/memory's Malloc.
func (a *Allocator) Malloc(size int) (r []byte, err error) {
	if trace {
		defer func() {
			var p *byte
			if len(r) != 0 {
				p = &r[0]
			}
			fmt.Fprintf(os.Stderr, "Malloc(%#x) %p, %v\n", size, p, err)
		}()
	}
	p, usable, err := a.allocate(size)
	if err != nil || p == nil {
		return nil, err
	}
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = uintptr(p)
	sh.Len = size
	sh.Cap = int(usable)
	return b, nil
}

// Calloc is like Malloc except the allocated memory is zeroed.
func (a *Allocator) Calloc(n, size int) (r []byte, err error) {
	b, err := a.Malloc(n * size)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

// Free deallocates memory acquired from Malloc, Calloc, or Realloc. A nil
// or empty argument is a no-op.
func (a *Allocator) Free(b []byte) error {
	if trace {
		var p *byte
		if len(b) != 0 {
			p = &b[0]
		}
		fmt.Fprintf(os.Stderr, "Free(%p)\n", p)
	}
	if len(b) == 0 {
		return nil
	}
	a.free(unsafe.Pointer(&b[0]))
	return nil
}

// Realloc changes the size of the block backing b to size bytes. Contents
// are preserved up to min(size, len(b)). If size is larger than the block's
// current capacity, a new block is allocated, the old contents copied, and
// the old block freed; the original is left untouched if that allocation
// fails. A nil b is equivalent to Malloc(size); size == 0 is equivalent to
// Free(b), returning (nil, nil).
func (a *Allocator) Realloc(b []byte, size int) (r []byte, err error) {
	switch {
	case len(b) == 0 && size == 0:
		return nil, nil
	case size == 0:
		return nil, a.Free(b)
	case len(b) == 0:
		return a.Malloc(size)
	case size <= cap(b):
		return b[:size], nil
	}

	r, err = a.Malloc(size)
	if err != nil {
		return nil, err
	}
	n := len(b)
	if size < n {
		n = size
	}
	copy(r, b[:n])
	if err := a.Free(b); err != nil {
		return nil, err
	}
	return r, nil
}

// UnsafeMalloc is like Malloc except it returns an unsafe.Pointer.
func (a *Allocator) UnsafeMalloc(size int) (r unsafe.Pointer, err error) {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "UnsafeMalloc(%#x) %p, %v\n", size, r, err)
		}()
	}
	p, _, err := a.allocate(size)
	return p, err
}

// UnsafeCalloc is like Calloc except it returns an unsafe.Pointer.
func (a *Allocator) UnsafeCalloc(n, size int) (r unsafe.Pointer, err error) {
	total := n * size
	r, err = a.UnsafeMalloc(total)
	if r == nil || err != nil {
		return nil, err
	}
	b := unsafe.Slice((*byte)(r), total)
	for i := range b {
		b[i] = 0
	}
	return r, nil
}

// UnsafeFree is like Free except its argument is an unsafe.Pointer acquired
// from UnsafeMalloc, UnsafeCalloc, or UnsafeRealloc. A nil p is a no-op.
func (a *Allocator) UnsafeFree(p unsafe.Pointer) error {
	if trace {
		fmt.Fprintf(os.Stderr, "UnsafeFree(%p)\n", p)
	}
	if p == nil {
		return nil
	}
	a.free(p)
	return nil
}

// UnsafeRealloc is like Realloc except its first argument and result are
// unsafe.Pointer.
func (a *Allocator) UnsafeRealloc(p unsafe.Pointer, size int) (r unsafe.Pointer, err error) {
	switch {
	case p == nil && size == 0:
		return nil, nil
	case size == 0:
		return nil, a.UnsafeFree(p)
	case p == nil:
		return a.UnsafeMalloc(size)
	}

	usable := UnsafeUsableSize(p)
	if usable >= size {
		return p, nil
	}

	r, err = a.UnsafeMalloc(size)
	if err != nil {
		return nil, err
	}
	n := usable
	if size < n {
		n = size
	}
	src := unsafe.Slice((*byte)(p), n)
	dst := unsafe.Slice((*byte)(r), n)
	copy(dst, src)
	if err := a.UnsafeFree(p); err != nil {
		return nil, err
	}
	return r, nil
}

// UsableSize reports the usable size of the block allocated at p, which
// must point to the first byte of a slice returned from Malloc, Calloc, or
// Realloc. The usable size can exceed the size originally requested.
func UsableSize(p *byte) int { return UnsafeUsableSize(unsafe.Pointer(p)) }

// UnsafeUsableSize is like UsableSize except its argument is an
// unsafe.Pointer acquired from UnsafeMalloc, UnsafeCalloc, or UnsafeRealloc.
func UnsafeUsableSize(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}
	return int(sizeAt(p) - dsize)
}
