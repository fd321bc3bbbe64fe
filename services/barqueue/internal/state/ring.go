package state

// DefaultCompletedCapacity bounds the completed-orders ring.
const DefaultCompletedCapacity = 200

// completedRing keeps the most recent completed orders, evicting the oldest.
type completedRing struct {
	buf   []CompletedOrder
	start int
	size  int
}

func newCompletedRing(capacity int) *completedRing {
	if capacity <= 0 {
		capacity = DefaultCompletedCapacity
	}
	return &completedRing{buf: make([]CompletedOrder, capacity)}
}

func (r *completedRing) push(c CompletedOrder) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = c
		r.size++
		return
	}
	r.buf[r.start] = c
	r.start = (r.start + 1) % len(r.buf)
}

// items returns a copy ordered oldest first.
func (r *completedRing) items() []CompletedOrder {
	out := make([]CompletedOrder, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *completedRing) capacity() int {
	return len(r.buf)
}
