package timeseries

// Batch accumulates the points of one fetch cycle in insertion order.
//
// A Batch is owned by the scheduler's run loop and is not safe for concurrent use.
type Batch struct {
	points []Point
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Append adds points at the end of the batch.
func (b *Batch) Append(points ...Point) {
	b.points = append(b.points, points...)
}

// Len returns the number of buffered points.
func (b *Batch) Len() int {
	return len(b.points)
}

// Drain hands every buffered point to the caller and leaves the batch empty.
// The returned slice is never touched by the batch again.
func (b *Batch) Drain() []Point {
	out := b.points
	b.points = make([]Point, 0, len(out))
	return out
}
