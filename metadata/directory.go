package metadata

import (
	"errors"
	"fmt"

	"github.com/skdltmxn/clrrefs/internal/stream"
)

// maxStreamName bounds a stream name including its terminator.
const maxStreamName = 32

// Directory parsing errors
var (
	ErrTruncatedDirectory = errors.New("metadata: truncated stream directory")
	ErrMissingStream      = errors.New("metadata: stream not found")
	ErrInvalidStreamName  = errors.New("metadata: invalid stream name")
)

// Directory describes all streams of the metadata root, keyed by name.
type Directory struct {
	// Names holds the stream names in header order.
	Names []string

	streams map[string]*Stream
}

// readDirectory reads the stream count and stream headers. Offsets in the
// headers are relative to base, the file offset of the metadata root.
func readDirectory(r *stream.Reader, base int64) (*Directory, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, ErrTruncatedDirectory
	}

	dir := &Directory{
		Names:   make([]string, 0, count),
		streams: make(map[string]*Stream, count),
	}

	for i := uint16(0); i < count; i++ {
		offset, err := r.ReadU32()
		if err != nil {
			return nil, ErrTruncatedDirectory
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, ErrTruncatedDirectory
		}

		name, err := r.ReadCString()
		if err != nil {
			return nil, ErrTruncatedDirectory
		}
		if len(name) == 0 || len(name)+1 > maxStreamName {
			return nil, fmt.Errorf("%w: header %d", ErrInvalidStreamName, i)
		}
		// Name plus terminator is padded to the next 4-byte boundary.
		consumed := int64(len(name) + 1)
		if err := r.Skip((consumed+3)&^3 - consumed); err != nil {
			return nil, ErrTruncatedDirectory
		}

		s := NewStream(string(name), base+int64(offset), size)
		if !r.Has(s.Offset, int64(s.Size)) {
			return nil, fmt.Errorf("%w: %s at 0x%x size 0x%x", ErrTruncatedDirectory, s.Name, s.Offset, s.Size)
		}

		if _, dup := dir.streams[s.Name]; !dup {
			dir.Names = append(dir.Names, s.Name)
		}
		dir.streams[s.Name] = s
	}

	return dir, nil
}

// Len returns the number of distinct streams.
func (d *Directory) Len() int {
	return len(d.Names)
}

// Has reports whether the named stream exists.
func (d *Directory) Has(name string) bool {
	_, ok := d.streams[name]
	return ok
}

// Lookup returns the named stream.
// Returns ErrMissingStream if the directory has no such entry.
func (d *Directory) Lookup(name string) (*Stream, error) {
	s, ok := d.streams[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingStream, name)
	}
	return s, nil
}

// All returns the streams in header order.
func (d *Directory) All() []*Stream {
	out := make([]*Stream, len(d.Names))
	for i, name := range d.Names {
		out[i] = d.streams[name]
	}
	return out
}
