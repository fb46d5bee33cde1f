package util

import "github.com/llio/llio/buffer"

// ChangeChannel is a segment visitor that remaps a segment from one
// channel to another, grounded on LLChangeChannel. Where the original used
// it as a std::for_each functor over a buffer's segments, buffer.Array's
// own ChangeChannel method already performs that bulk walk; this type
// remains useful wherever a single segment is remapped in isolation, eg.
// while building a sub-chain's own segment list.
type ChangeChannel struct {
	Is      int32
	Becomes int32
}

// Apply remaps seg in place if it is on the Is channel.
func (c ChangeChannel) Apply(seg *buffer.Segment) {
	if seg.IsOnChannel(c.Is) {
		seg.SetChannel(c.Becomes)
	}
}
