// Package metadata provides parsing for the CLI metadata root, its stream
// directory and the heaps it names.
package metadata

import (
	"errors"
	"fmt"

	"github.com/skdltmxn/clrrefs/internal/stream"
)

// Signature is the magic value at the start of the metadata root ("BSJB").
const Signature uint32 = 0x424A5342

// Well-known stream names
const (
	StreamTables     = "#~"
	StreamStrings    = "#Strings"
	StreamGUID       = "#GUID"
	StreamBlob       = "#Blob"
	StreamUserString = "#US"
)

// maxVersionLength bounds the version string. ECMA-335 caps it at 255
// bytes before padding.
const maxVersionLength = 256

// Errors returned during root parsing
var (
	ErrInvalidSignature = errors.New("metadata: invalid metadata root signature")
	ErrTruncatedRoot    = errors.New("metadata: truncated metadata root")
	ErrInvalidVersion   = errors.New("metadata: invalid version string length")
)

// Root is the metadata root: a versioned header followed by the stream
// directory.
type Root struct {
	// Offset is the file offset of the root. Stream offsets are relative
	// to it.
	Offset int64

	Signature    uint32
	MajorVersion uint16
	MinorVersion uint16
	Reserved     uint32

	// Version is the runtime version string, e.g. "v4.0.30319".
	Version string

	Flags uint16

	// Streams is the directory of named streams.
	Streams *Directory
}

// ReadRoot reads and validates the metadata root located at offset.
// The reader's position is left after the last stream header.
func ReadRoot(r *stream.Reader, offset int64) (*Root, error) {
	if err := r.SetOffset(offset); err != nil {
		return nil, err
	}

	root := &Root{Offset: offset}
	var err error

	if root.Signature, err = r.ReadU32(); err != nil {
		return nil, truncated(err)
	}
	if root.Signature != Signature {
		return nil, fmt.Errorf("%w: 0x%08x", ErrInvalidSignature, root.Signature)
	}

	if root.MajorVersion, err = r.ReadU16(); err != nil {
		return nil, truncated(err)
	}
	if root.MinorVersion, err = r.ReadU16(); err != nil {
		return nil, truncated(err)
	}
	if root.Reserved, err = r.ReadU32(); err != nil {
		return nil, truncated(err)
	}

	length, err := r.ReadU32()
	if err != nil {
		return nil, truncated(err)
	}
	if length > maxVersionLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, length)
	}
	if root.Version, err = r.ReadFixedString(int(length)); err != nil {
		return nil, truncated(err)
	}
	// Padding is relative to the root, which need not be 4-aligned in the file.
	if err := r.Skip(int64((length+3)&^3 - length)); err != nil {
		return nil, truncated(err)
	}

	if root.Flags, err = r.ReadU16(); err != nil {
		return nil, truncated(err)
	}

	if root.Streams, err = readDirectory(r, offset); err != nil {
		return nil, err
	}

	return root, nil
}

// Stream returns the named stream or ErrMissingStream.
func (root *Root) Stream(name string) (*Stream, error) {
	return root.Streams.Lookup(name)
}

func truncated(err error) error {
	if errors.Is(err, stream.ErrUnexpectedEOF) {
		return ErrTruncatedRoot
	}
	return err
}
