package ldpccoding

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// ErrCapacityExceeded is the panic value (wrapped) raised when more tickets
// are reserved than a Completion was sized for.
var ErrCapacityExceeded = errors.New("completion capacity exceeded")

// ticketSlot keeps each completion flag on its own cache line; workers
// finishing at the same time would otherwise share one.
type ticketSlot struct {
	_    cpu.CacheLinePad
	done atomic.Uint32
	_    cpu.CacheLinePad
}

// Completion is a fixed-capacity join barrier. The producer reserves one
// Ticket per submitted task, each task calls Done exactly once and Wait
// returns when every reserved ticket is done.
type Completion struct {
	slots    []ticketSlot
	reserved atomic.Int32
	finished atomic.Int32
	wg       sync.WaitGroup
}

func NewCompletion(capacity int) *Completion {
	return &Completion{slots: make([]ticketSlot, capacity)}
}

// Ticket is one pending completion.
type Ticket struct {
	c   *Completion
	idx int
}

// Reserve hands out the next ticket. It panics when capacity is exhausted.
func (c *Completion) Reserve() Ticket {
	idx := int(c.reserved.Add(1)) - 1
	if idx >= len(c.slots) {
		c.reserved.Add(-1)
		panic(fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, len(c.slots)))
	}
	c.wg.Add(1)
	return Ticket{c: c, idx: idx}
}

// Done marks the ticket complete. Completing a ticket twice panics.
func (t Ticket) Done() {
	if !t.c.slots[t.idx].done.CompareAndSwap(0, 1) {
		panic(fmt.Sprintf("ticket %d completed twice", t.idx))
	}
	t.c.finished.Add(1)
	t.c.wg.Done()
}

// Wait blocks until all reserved tickets are done.
func (c *Completion) Wait() { c.wg.Wait() }

// Capacity returns the number of tickets the Completion was sized for.
func (c *Completion) Capacity() int { return len(c.slots) }

// Pending returns reserved tickets not yet done.
func (c *Completion) Pending() int {
	return int(c.reserved.Load() - c.finished.Load())
}
