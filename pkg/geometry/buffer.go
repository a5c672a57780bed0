package geometry

// MotionBuffer is a fixed-capacity ring of recent positions, oldest evicted
// first. It is not safe for concurrent use; each classifier owns its own.
type MotionBuffer struct {
	data  []Vec2
	head  int
	count int
}

// NewMotionBuffer creates a buffer holding at most capacity points.
// Capacities below 2 are raised to 2 so motion can be measured.
func NewMotionBuffer(capacity int) *MotionBuffer {
	if capacity < 2 {
		capacity = 2
	}
	return &MotionBuffer{data: make([]Vec2, capacity)}
}

// Push appends a point, evicting the oldest when full.
func (b *MotionBuffer) Push(p Vec2) {
	b.data[b.head] = p
	b.head = (b.head + 1) % len(b.data)
	if b.count < len(b.data) {
		b.count++
	}
}

// Len returns the number of stored points.
func (b *MotionBuffer) Len() int {
	return b.count
}

// Cap returns the buffer capacity.
func (b *MotionBuffer) Cap() int {
	return len(b.data)
}

// Points returns the stored points in chronological order.
func (b *MotionBuffer) Points() []Vec2 {
	out := make([]Vec2, b.count)
	start := (b.head - b.count + len(b.data)) % len(b.data)
	for i := 0; i < b.count; i++ {
		out[i] = b.data[(start+i)%len(b.data)]
	}
	return out
}

// Last returns the newest n points in chronological order (fewer if the
// buffer holds fewer).
func (b *MotionBuffer) Last(n int) []Vec2 {
	pts := b.Points()
	if n < len(pts) {
		pts = pts[len(pts)-n:]
	}
	return pts
}

// AvgMotion returns the mean per-step displacement of the stored points.
func (b *MotionBuffer) AvgMotion() Vec2 {
	return AvgMotion(b.Points())
}

// Clear drops all points.
func (b *MotionBuffer) Clear() {
	b.head = 0
	b.count = 0
}
