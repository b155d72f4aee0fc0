package vkg

import (
	"fmt"
	"log/slog"

	"github.com/docker/go-units"
)

// Allocation is a range of a memory pool handed out by an IAllocator.
type Allocation struct {
	Offset uint64
	Size   uint64
}

func (a *Allocation) String() string {
	return fmt.Sprintf("[%d %d]", a.Offset, a.Size)
}

// IAllocator sub-allocates ranges of a single device memory allocation.
type IAllocator interface {
	// Allocate returns nil when no aligned range of size bytes is free
	Allocate(size uint64, align uint64) *Allocation
	Free(a *Allocation)
	Used() uint64
	Count() int
}

// LinearAllocator places each allocation in the first aligned gap large
// enough to hold it. Allocations are kept sorted by offset.
type LinearAllocator struct {
	Size   uint64
	allocs []*Allocation
}

var _ IAllocator = (*LinearAllocator)(nil)

func makeAlignUp(a uint64, align uint64) uint64 {
	if align <= 1 {
		return a
	}
	m := a % align
	if m == 0 {
		return a
	}
	return (a - m) + align
}

func (p *LinearAllocator) Free(fa *Allocation) {
	for i, a := range p.allocs {
		if a == fa {
			p.allocs = append(p.allocs[:i], p.allocs[i+1:]...)
			return
		}
	}
}

func (p *LinearAllocator) Allocate(size uint64, align uint64) *Allocation {
	if size == 0 || size > p.Size {
		return nil
	}

	var start uint64
	for i, a := range p.allocs {
		if a.Offset >= start && a.Offset-start >= size {
			na := &Allocation{Offset: start, Size: size}
			p.allocs = append(p.allocs[:i], append([]*Allocation{na}, p.allocs[i:]...)...)
			return na
		}
		start = makeAlignUp(a.Offset+a.Size, align)
	}

	if start <= p.Size && p.Size-start >= size {
		na := &Allocation{Offset: start, Size: size}
		p.allocs = append(p.allocs, na)
		return na
	}
	return nil
}

// Used is the number of bytes currently allocated, not counting alignment padding.
func (p *LinearAllocator) Used() uint64 {
	var used uint64
	for _, a := range p.allocs {
		used += a.Size
	}
	return used
}

func (p *LinearAllocator) Count() int {
	return len(p.allocs)
}

func (p *LinearAllocator) String() string {
	return fmt.Sprintf("%v", p.allocs)
}

// LogValue implements slog.LogValuer.
func (p *LinearAllocator) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("size", units.BytesSize(float64(p.Size))),
		slog.String("used", units.BytesSize(float64(p.Used()))),
		slog.Int("allocations", p.Count()),
	)
}
