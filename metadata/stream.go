package metadata

import (
	"errors"
	"fmt"
)

// ErrOutOfStream is returned when a span does not fit inside its stream.
var ErrOutOfStream = errors.New("metadata: span exceeds stream bounds")

// Stream is one named region of the metadata block. Unlike MSF streams the
// region is contiguous in the file, so only its bounds are tracked.
type Stream struct {
	Name string

	// Offset is the absolute file offset of the first byte.
	Offset int64

	// Size is the stream length in bytes.
	Size uint32
}

// NewStream creates a Stream for the given absolute region.
func NewStream(name string, offset int64, size uint32) *Stream {
	return &Stream{Name: name, Offset: offset, Size: size}
}

// End returns the absolute offset one past the last byte of the stream.
func (s *Stream) End() int64 {
	return s.Offset + int64(s.Size)
}

// Contains reports whether n bytes starting at relative offset rel lie
// within the stream.
func (s *Stream) Contains(rel, n uint64) bool {
	return rel <= uint64(s.Size) && n <= uint64(s.Size)-rel
}

// Span returns the absolute offset of the relative region [rel, rel+n).
// Returns ErrOutOfStream if the region is not inside the stream.
func (s *Stream) Span(rel, n uint64) (int64, error) {
	if !s.Contains(rel, n) {
		return 0, fmt.Errorf("%w: %s offset 0x%x length %d (size 0x%x)", ErrOutOfStream, s.Name, rel, n, s.Size)
	}
	return s.Offset + int64(rel), nil
}
