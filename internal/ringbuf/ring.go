package ringbuf

// Ring is a fixed-capacity overwrite buffer for received samples. Continuous
// spectrum display needs the newest samples to replace the oldest instead of
// growing the capture without bound.
type Ring struct {
	data  []complex64
	head  int
	full  bool
	count int
}

func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{data: make([]complex64, capacity)}
}

// Push appends samples, overwriting the oldest once the ring is full.
func (r *Ring) Push(samples []complex64) {
	for _, s := range samples {
		r.data[r.head] = s
		r.head = (r.head + 1) % len(r.data)
		if r.count < len(r.data) {
			r.count++
		} else {
			r.full = true
		}
	}
	if r.count == len(r.data) {
		r.full = true
	}
}

// Snapshot returns the buffered samples in arrival order.
func (r *Ring) Snapshot() []complex64 {
	out := make([]complex64, 0, r.count)
	if !r.full {
		return append(out, r.data[:r.count]...)
	}
	out = append(out, r.data[r.head:]...)
	out = append(out, r.data[:r.head]...)
	return out
}

// Len returns the number of buffered samples.
func (r *Ring) Len() int { return r.count }

// Reset drops all buffered samples.
func (r *Ring) Reset() {
	r.head = 0
	r.count = 0
	r.full = false
}
