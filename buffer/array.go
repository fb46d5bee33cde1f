package buffer

import "sync"

// Array is an ordered list of Blocks (storage) and Segments (presentation).
// Segments are ordered; that order defines the logical byte sequence on any
// given channel. The same Block may back many Segments, and segments on
// different channels may be interleaved in block memory.
//
// Every method takes the array's mutex for the length of the call, so single
// calls are safe from several goroutines. SetThreaded only records a flag;
// it changes no behaviour.
type Array struct {
	mu       sync.Mutex
	threaded bool

	blocks   []*Block
	segments []Segment
	nextBase int32
}

// NewArray returns a new, empty buffer array.
func NewArray() *Array {
	return &Array{}
}

// SetThreaded records whether this array is shared across goroutines. The
// flag is stored only; no method reads it.
func (a *Array) SetThreaded(threaded bool) { a.threaded = threaded }

// Lock acquires the array's mutex. The mutex is not reentrant and every
// other method of Array takes it too, so no Array method may be called
// between Lock and Unlock: a multi-operation sequence cannot be made atomic
// this way.
func (a *Array) Lock() { a.mu.Lock() }

// Unlock releases the array's mutex.
func (a *Array) Unlock() { a.mu.Unlock() }

// NextChannel allocates a new channel descriptor set whose In lane is
// distinct from every descriptor set previously returned by this array.
func (a *Array) NextChannel() Channels {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := Channels{base: a.nextBase}
	a.nextBase += ChannelWidth
	return c
}

// Capacity returns the sum of the capacities of every block backing this
// array.
func (a *Array) Capacity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, b := range a.blocks {
		total += b.Capacity()
	}
	return total
}

// copyIntoSegments carves src into one or more segments on channel, trying
// existing blocks (in order) before allocating new ones. If a freshly
// allocated block still cannot satisfy CreateSegment (should never happen),
// the block is kept — the array remains usable but the copy is incomplete;
// this mirrors the original implementation's documented "hosed but not
// lost" behavior rather than corrupting or losing the array.
func (a *Array) copyIntoSegments(channel int32, src []byte) []Segment {
	var out []Segment
	remaining := src

	for _, b := range a.blocks {
		if len(remaining) == 0 {
			break
		}
		if b.BytesLeft() <= 0 {
			continue
		}
		seg, n, ok := b.CreateSegment(channel, remaining)
		if !ok {
			continue
		}
		out = append(out, seg)
		remaining = remaining[n:]
	}

	for len(remaining) > 0 {
		nb := NewBlock(DefaultBlockSize)
		a.blocks = append(a.blocks, nb)
		seg, n, ok := nb.CreateSegment(channel, remaining)
		if !ok {
			// fresh block refused every byte: leave it allocated (leaked,
			// not lost) and stop rather than loop forever.
			break
		}
		out = append(out, seg)
		remaining = remaining[n:]
	}

	return out
}

// Append appends bytes to the end of the logical stream on channel. Returns
// false only if data is empty.
func (a *Array) Append(channel int32, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	segs := a.copyIntoSegments(channel, data)
	a.segments = append(a.segments, segs...)
	return true
}

// Prepend is like Append, but at the head of the logical stream.
func (a *Array) Prepend(channel int32, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	segs := a.copyIntoSegments(channel, data)
	a.segments = append(segs, a.segments...)
	return true
}

// EndSegment returns the iterator one past the last segment (see
// BeginSegment/EndSegment for iteration helpers).
const EndSegment = -1

// InsertAfter inserts data as one or more new segments on channel
// immediately after the segment at iterator iter. Inserting after
// EndSegment is equivalent to Append. Returns the iterator of the first
// newly inserted segment.
func (a *Array) InsertAfter(iter int, channel int32, data []byte) (int, bool) {
	if len(data) == 0 {
		return iter, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	segs := a.copyIntoSegments(channel, data)
	if iter == EndSegment || iter >= len(a.segments)-1 {
		first := len(a.segments)
		a.segments = append(a.segments, segs...)
		return first, true
	}

	tail := append([]Segment{}, a.segments[iter+1:]...)
	a.segments = append(a.segments[:iter+1], segs...)
	a.segments = append(a.segments, tail...)
	return iter + 1, true
}

// segIndexContaining returns the index of the segment containing addr.
// Caller must hold a.mu.
func (a *Array) segIndexContaining(addr Addr) (int, bool) {
	for i, s := range a.segments {
		if s.Contains(addr) {
			return i, true
		}
	}
	return -1, false
}

// CountAfter returns the total number of bytes on channel strictly after
// start. A nil start counts from the beginning.
func (a *Array) CountAfter(channel int32, start *Addr) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	startIdx := 0
	offsetWithin := 0
	if start != nil {
		idx, found := a.segIndexContaining(*start)
		if !found {
			return 0
		}
		startIdx = idx
		offsetWithin = start.offset - a.segments[idx].start + 1
	}

	total := 0
	for i := startIdx; i < len(a.segments); i++ {
		s := a.segments[i]
		if !s.IsOnChannel(channel) {
			continue
		}
		add := s.size
		if i == startIdx && start != nil {
			add -= offsetWithin
		}
		if add > 0 {
			total += add
		}
	}
	return total
}

// Count returns the total number of bytes on channel.
func (a *Array) Count(channel int32) int {
	return a.CountAfter(channel, nil)
}

// ReadAfter copies up to len(dst) bytes of channel data starting strictly
// after start into dst, skipping segments on other channels. It returns the
// number of bytes written and the address of the last byte written, which
// the caller can feed back in as the next start.
func (a *Array) ReadAfter(channel int32, start *Addr, dst []byte) (n int, last *Addr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	maxLen := len(dst)
	startIdx := 0
	offsetWithin := 0
	if start != nil {
		idx, found := a.segIndexContaining(*start)
		if !found {
			return 0, nil
		}
		startIdx = idx
		offsetWithin = start.offset - a.segments[idx].start + 1
	}

	for i := startIdx; i < len(a.segments) && n < maxLen; i++ {
		s := a.segments[i]
		if !s.IsOnChannel(channel) {
			continue
		}
		data := s.Data()
		skip := 0
		if i == startIdx && start != nil {
			skip = offsetWithin
		}
		if skip >= len(data) {
			continue
		}
		data = data[skip:]
		take := len(data)
		if n+take > maxLen {
			take = maxLen - n
		}
		copy(dst[n:n+take], data[:take])
		n += take
		if take > 0 {
			lastOffset := s.start + skip + take - 1
			last = &Addr{block: s.block, offset: lastOffset}
		}
	}
	return n, last
}

// channelAddrs returns the flat, in-order list of addresses on channel.
// Caller must hold a.mu.
func (a *Array) channelAddrs(channel int32) []Addr {
	var addrs []Addr
	for _, s := range a.segments {
		if !s.IsOnChannel(channel) {
			continue
		}
		for off := s.start; off < s.start+s.size; off++ {
			addrs = append(addrs, Addr{block: s.block, offset: off})
		}
	}
	return addrs
}

// Seek returns the address reached by moving delta bytes along channel from
// start. See the package-level documentation on End() for the END sentinel.
func (a *Array) Seek(channel int32, start *Addr, delta int) *Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	addrs := a.channelAddrs(channel)

	if delta == 0 {
		switch {
		case isEnd(start):
			if len(addrs) == 0 {
				return nil
			}
			last := addrs[len(addrs)-1]
			res := Addr{block: last.block, offset: last.offset + 1}
			return &res
		case start == nil:
			if len(addrs) == 0 {
				return nil
			}
			res := addrs[0]
			return &res
		default:
			for _, ad := range addrs {
				if ad == *start {
					res := *start
					return &res
				}
			}
			return nil
		}
	}

	idx := -1 // "before first"
	switch {
	case start == nil:
		if delta < 0 {
			return nil
		}
	case isEnd(start):
		idx = len(addrs)
	default:
		found := false
		for i, ad := range addrs {
			if ad == *start {
				idx = i
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}

	newIdx := idx + delta
	if newIdx < 0 || newIdx >= len(addrs) {
		return nil
	}
	res := addrs[newIdx]
	return &res
}

// SplitAfter splits the segment containing addr so that addr becomes the
// last byte of the first half. If addr is already the last byte of its
// segment, no split happens and the segment's own iterator is returned
// unchanged; SplitAfter never creates a zero-length segment.
func (a *Array) SplitAfter(addr Addr) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, found := a.segIndexContaining(addr)
	if !found {
		return -1, false
	}
	s := a.segments[idx]
	if addr.offset == s.start+s.size-1 {
		return idx, true
	}

	size1 := addr.offset - s.start + 1
	seg1 := Segment{Channel: s.Channel, block: s.block, start: s.start, size: size1}
	seg2 := Segment{Channel: s.Channel, block: s.block, start: addr.offset + 1, size: s.size - size1}

	a.segments[idx] = seg1
	tail := append([]Segment{}, a.segments[idx+1:]...)
	a.segments = append(a.segments[:idx+1], seg2)
	a.segments = append(a.segments, tail...)
	return idx, true
}

// BeginSegment returns the iterator of the first segment, or EndSegment if
// the array has none.
func (a *Array) BeginSegment() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.segments) == 0 {
		return EndSegment
	}
	return 0
}

// EndSegmentIter returns the one-past-the-last iterator.
func (a *Array) EndSegmentIter() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.segments)
}

// GetSegment returns the segment at iterator iter.
func (a *Array) GetSegment(iter int) (Segment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if iter < 0 || iter >= len(a.segments) {
		return Segment{}, false
	}
	return a.segments[iter], true
}

// GetSegmentAt returns the segment containing addr.
func (a *Array) GetSegmentAt(addr Addr) (Segment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, found := a.segIndexContaining(addr)
	if !found {
		return Segment{}, false
	}
	return a.segments[idx], true
}

// ConstructSegmentAfter builds the segment that begins just after addr.
// With a nil addr it returns the first segment as-is. With a non-nil addr
// that falls strictly before the end of its containing segment, it returns
// a virtual sub-segment of that same segment, starting one byte past addr;
// otherwise it advances to the next segment entirely.
func (a *Array) ConstructSegmentAfter(addr *Addr) (Segment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if addr == nil {
		if len(a.segments) == 0 {
			return Segment{}, false
		}
		return a.segments[0], true
	}

	idx, found := a.segIndexContaining(*addr)
	if !found {
		return Segment{}, false
	}
	s := a.segments[idx]
	if addr.offset+1 < s.start+s.size {
		return Segment{
			Channel: s.Channel,
			block:   s.block,
			start:   addr.offset + 1,
			size:    s.start + s.size - (addr.offset + 1),
		}, true
	}

	if idx+1 >= len(a.segments) {
		return Segment{}, false
	}
	return a.segments[idx+1], true
}

// MakeSegment produces an empty, addressable segment of up to len bytes on
// channel for a pipe to fill in, used by output-side writers. It tries
// existing blocks tail-first before allocating a new default-sized block.
// The new segment is always appended at the end of the array's ordering.
func (a *Array) MakeSegment(channel int32, length int) (Segment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(a.blocks) - 1; i >= 0; i-- {
		if seg, ok := a.blocks[i].Reserve(channel, length); ok {
			a.segments = append(a.segments, seg)
			return seg, true
		}
	}

	nb := NewBlock(DefaultBlockSize)
	a.blocks = append(a.blocks, nb)
	seg, ok := nb.Reserve(channel, length)
	if !ok {
		return Segment{}, false
	}
	a.segments = append(a.segments, seg)
	return seg, true
}

// EraseSegment removes the segment at iterator iter from the ordering. The
// underlying bytes in its block are not reclaimed — this is an acknowledged
// leak, bounded by the lifetime of the whole array.
func (a *Array) EraseSegment(iter int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if iter < 0 || iter >= len(a.segments) {
		return false
	}
	a.segments = append(a.segments[:iter], a.segments[iter+1:]...)
	return true
}

// TakeContents moves all blocks and segments out of other into a, appended
// at the end of a's existing content. other is left empty with its channel
// counter reset.
func (a *Array) TakeContents(other *Array) {
	if a == other {
		return
	}
	a.mu.Lock()
	other.mu.Lock()
	defer a.mu.Unlock()
	defer other.mu.Unlock()

	a.blocks = append(a.blocks, other.blocks...)
	a.segments = append(a.segments, other.segments...)
	other.blocks = nil
	other.segments = nil
	other.nextBase = 0
}

// ChangeChannel rewrites the channel of every segment currently on channel
// from to channel to. Applying it twice is idempotent: the second call finds
// nothing left on from to change.
func (a *Array) ChangeChannel(from, to int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.segments {
		if a.segments[i].IsOnChannel(from) {
			a.segments[i].SetChannel(to)
		}
	}
}
