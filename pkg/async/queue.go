package async

import "context"

type task struct {
	handle *Handle
	run    func(ctx context.Context) (any, error)
}

// ring is a fixed-capacity FIFO of pending tasks. It is not safe for
// concurrent use; the executor guards it with its mutex.
type ring struct {
	buf   []*task
	head  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]*task, capacity)}
}

func (r *ring) len() int   { return r.count }
func (r *ring) cap() int   { return len(r.buf) }
func (r *ring) full() bool { return r.count == len(r.buf) }

// push appends t; the caller checks full first.
func (r *ring) push(t *task) {
	r.buf[(r.head+r.count)%len(r.buf)] = t
	r.count++
}

// pop removes the oldest task.
func (r *ring) pop() *task {
	if r.count == 0 {
		return nil
	}
	t := r.buf[r.head]
	r.buf[r.head] = nil
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return t
}

// drain removes every queued task, oldest first.
func (r *ring) drain() []*task {
	out := make([]*task, 0, r.count)
	for r.count > 0 {
		out = append(out, r.pop())
	}
	return out
}

// ids lists queued task ids, oldest first.
func (r *ring) ids() []string {
	out := make([]string, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)].handle.id)
	}
	return out
}
