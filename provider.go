// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"fmt"
	"os"
	"unsafe"
)

// defaultReserve is the virtual-memory ceiling handed to a provider that
// wasn't given an explicit size: the heap may grow, via extend, up to this
// many bytes before Malloc/Realloc start reporting out-of-memory.
const defaultReserve = 1 << 30 // 1GiB

var (
	osPageSize = os.Getpagesize()
	osPageMask = osPageSize - 1
)

// provider is the sbrk-like memory primitive spec.md §6 calls the "consumed
// interface": extend the managed region by N bytes and hand back the old
// break, or fail; report the current low/high bounds. It reserves one
// large, fixed-address anonymous mapping up front via the platform mmap0
// (mmap_unix.go / mmap_windows.go, carried over from the teacher with small
// changes) and then
// satisfies every sbrk by bumping an offset inside that reservation.
// Bumping rather than mapping fresh memory per call is what guarantees the
// contiguity the boundary-tag scheme requires between one heap extension
// and the next; plain repeated mmap calls carry no such guarantee.
type provider struct {
	arena []byte
	brk   int
}

func newProvider(reserve int) (*provider, error) {
	if reserve <= 0 {
		reserve = defaultReserve
	}
	b, err := mmap(reserve)
	if err != nil {
		return nil, fmt.Errorf("heap: reserve %d bytes: %w", reserve, err)
	}
	return &provider{arena: b}, nil
}

// sbrk extends the managed region by delta bytes, returning the address of
// the first new byte (the previous break).
func (p *provider) sbrk(delta int) (unsafe.Pointer, error) {
	if delta < 0 {
		panic("heap: negative sbrk delta")
	}
	if p.brk+delta > len(p.arena) {
		return nil, fmt.Errorf("heap: out of memory (reservation of %d bytes exhausted)", len(p.arena))
	}
	old := unsafe.Pointer(&p.arena[p.brk])
	p.brk += delta
	return old, nil
}

func (p *provider) low() unsafe.Pointer { return unsafe.Pointer(&p.arena[0]) }

func (p *provider) high() unsafe.Pointer {
	if p.brk == 0 {
		return p.low()
	}
	return unsafe.Pointer(&p.arena[p.brk-1])
}

func (p *provider) close() error {
	if p.arena == nil {
		return nil
	}
	err := unmap(unsafe.Pointer(&p.arena[0]), len(p.arena))
	p.arena = nil
	p.brk = 0
	return err
}

// mmap rounds size up to an OS page and hands back a fresh, zeroed mapping
// via the platform-specific mmap0.
func mmap(size int) ([]byte, error) {
	size = roundup(size, osPageSize)
	return mmap0(size)
}
