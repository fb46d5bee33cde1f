package buffer

// Addr addresses a single byte inside a Block's storage. Addresses are
// opaque outside this package: callers receive them from one operation
// (eg. ReadAfter) and feed them back into another (eg. Seek, SplitAfter)
// without inspecting their fields.
type Addr struct {
	block  *Block
	offset int
}

// end is the sentinel passed as start to Seek to mean "one past the last
// byte of the channel". It never equals a real Addr, since real addresses
// always carry a non-nil block.
var end = &Addr{offset: -1}

// End returns the sentinel address used with Seek to mean "one past the
// last byte of the channel".
func End() *Addr { return end }

func isEnd(a *Addr) bool {
	return a != nil && a.block == nil && a.offset == -1
}

// Segment is a (channel, byte-range) view into a Block. Segments never own
// storage; they borrow a slice of a backing Block. Two segments are equal
// iff they share the same channel, block, and byte range.
type Segment struct {
	Channel int32

	block *Block
	start int
	size  int
}

// Size returns the number of bytes in this segment. Always >= 1 for any
// segment that is actually part of an Array.
func (s Segment) Size() int { return s.size }

// Data returns the segment's bytes as a slice into the backing block.
// Mutating it mutates the block's storage in place.
func (s Segment) Data() []byte {
	if s.block == nil {
		return nil
	}
	return s.block.store[s.start : s.start+s.size]
}

// IsOnChannel reports whether the segment belongs to the given channel.
func (s Segment) IsOnChannel(channel int32) bool {
	return s.Channel == channel
}

// SetChannel moves the segment to a different channel. Used by ChangeChannel.
func (s *Segment) SetChannel(channel int32) {
	s.Channel = channel
}

// Begin returns the address of the segment's first byte.
func (s Segment) Begin() Addr {
	return Addr{block: s.block, offset: s.start}
}

// End returns the address one past the segment's last byte.
func (s Segment) End() Addr {
	return Addr{block: s.block, offset: s.start + s.size}
}

// Last returns the address of the segment's last byte.
func (s Segment) Last() Addr {
	return Addr{block: s.block, offset: s.start + s.size - 1}
}

// AddrAtOffset returns the address of the n-th byte of the segment (0
// meaning Begin()), used by writers that only manage to send part of a
// segment and need to resume from exactly where they left off.
func (s Segment) AddrAtOffset(n int) Addr {
	return Addr{block: s.block, offset: s.start + n}
}

// Contains reports whether addr falls within this segment's byte range.
func (s Segment) Contains(addr Addr) bool {
	return addr.block == s.block && addr.offset >= s.start && addr.offset < s.start+s.size
}
