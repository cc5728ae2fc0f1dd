package app

import "sort"

// IdleTimers holds per-seat inactivity deadlines measured in match ticks.
// Expiry is polled by Service.Tick, so arming and cancelling never block.
type IdleTimers struct {
	deadlines map[int]int64
}

func NewIdleTimers() *IdleTimers {
	return &IdleTimers{deadlines: make(map[int]int64)}
}

// Arm sets or resets seat's deadline.
func (t *IdleTimers) Arm(seat int, deadline int64) {
	t.deadlines[seat] = deadline
}

// Cancel removes seat's deadline.
func (t *IdleTimers) Cancel(seat int) {
	delete(t.deadlines, seat)
}

// Clear removes every deadline.
func (t *IdleTimers) Clear() {
	t.deadlines = make(map[int]int64)
}

// Deadline returns seat's deadline if armed.
func (t *IdleTimers) Deadline(seat int) (int64, bool) {
	d, ok := t.deadlines[seat]
	return d, ok
}

// Expired returns, in seat order, the seats whose deadline is at or before tick.
func (t *IdleTimers) Expired(tick int64) []int {
	var out []int
	for seat, d := range t.deadlines {
		if d <= tick {
			out = append(out, seat)
		}
	}
	sort.Ints(out)
	return out
}
