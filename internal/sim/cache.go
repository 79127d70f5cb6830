package sim

// SampleCache is a fixed-depth ring of the most recent sub-tick samples.
// Push overwrites the oldest entry, so the length never changes after
// construction and no allocation happens per sub-tick.
type SampleCache[T any] struct {
	buf  []T
	head int // oldest entry, next to be overwritten
}

// NewSampleCache creates a cache of depth entries, each set to initial.
func NewSampleCache[T any](depth int, initial T) *SampleCache[T] {
	if depth < 1 {
		depth = 1
	}
	buf := make([]T, depth)
	for i := range buf {
		buf[i] = initial
	}
	return &SampleCache[T]{buf: buf}
}

// Push discards the oldest sample and appends v as the newest.
func (c *SampleCache[T]) Push(v T) {
	c.buf[c.head] = v
	c.head = (c.head + 1) % len(c.buf)
}

// Len returns the cache depth.
func (c *SampleCache[T]) Len() int { return len(c.buf) }

// Latest returns the newest sample.
func (c *SampleCache[T]) Latest() T {
	return c.buf[(c.head-1+len(c.buf))%len(c.buf)]
}

// Drain appends every sample, oldest first, to dst[:0] and returns it. The
// cache keeps its length; draining hands the control loop one period's
// worth of sub-tick history.
func (c *SampleCache[T]) Drain(dst []T) []T {
	dst = dst[:0]
	for i := 0; i < len(c.buf); i++ {
		dst = append(dst, c.buf[(c.head+i)%len(c.buf)])
	}
	return dst
}

// Reset fills every slot with v.
func (c *SampleCache[T]) Reset(v T) {
	for i := range c.buf {
		c.buf[i] = v
	}
	c.head = 0
}
