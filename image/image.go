// Package image provides parsing for the PE container that carries a CLI
// metadata block.
package image

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/skdltmxn/clrrefs/internal/mmfile"
)

// MinFileSize is the smallest input debug/pe can look at: the DOS header it
// reads up front is 96 bytes.
const MinFileSize = 96

// CLIHeaderSize is the size of the CLI header (IMAGE_COR20_HEADER).
const CLIHeaderSize = 72

// Errors returned while reading the container
var (
	ErrOpen           = errors.New("image: cannot open file")
	ErrTruncatedFile  = errors.New("image: file is truncated")
	ErrNotPE          = errors.New("image: not a valid PE file")
	ErrNotManaged     = errors.New("image: no CLI header, not a managed image")
	ErrUnmappedRegion = errors.New("image: region is not mapped by any section")
)

// CLIHeader is the runtime header pointed to by the COM descriptor data
// directory.
type CLIHeader struct {
	Size                    uint32
	MajorRuntimeVersion     uint16
	MinorRuntimeVersion     uint16
	Metadata                pe.DataDirectory
	Flags                   uint32
	EntryPointToken         uint32
	Resources               pe.DataDirectory
	StrongNameSignature     pe.DataDirectory
	CodeManagerTable        pe.DataDirectory
	VTableFixups            pe.DataDirectory
	ExportAddressTableJumps pe.DataDirectory
	ManagedNativeHeader     pe.DataDirectory
}

// File represents an opened PE image.
type File struct {
	data   io.ReaderAt
	closer func() error // may be nil if data doesn't need closing
	size   int64

	machine   uint16
	imageBase uint64
	comDir    pe.DataDirectory
	sections  []Section

	cliOnce sync.Once
	cli     *CLIHeader
	cliErr  error
}

// Open maps the image at path read-only.
func Open(path string) (*File, error) {
	data, cleanup, err := mmfile.Map(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	f, err := NewFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		cleanup()
		return nil, err
	}

	f.closer = cleanup
	return f, nil
}

// NewFile creates a File from an io.ReaderAt holding size bytes.
// The caller is responsible for closing the underlying reader if needed.
func NewFile(r io.ReaderAt, size int64) (*File, error) {
	if size < MinFileSize {
		return nil, ErrTruncatedFile
	}

	pf, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPE, err)
	}

	f := &File{
		data:    r,
		size:    size,
		machine: pf.FileHeader.Machine,
	}

	var dirs []pe.DataDirectory
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		f.imageBase = uint64(oh.ImageBase)
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	case *pe.OptionalHeader64:
		f.imageBase = oh.ImageBase
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	default:
		return nil, fmt.Errorf("%w: missing optional header", ErrNotPE)
	}
	if len(dirs) > pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR {
		f.comDir = dirs[pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR]
	}

	f.sections = make([]Section, len(pf.Sections))
	for i, s := range pf.Sections {
		f.sections[i] = Section{
			Name:        s.Name,
			RVA:         s.VirtualAddress,
			VirtualSize: s.VirtualSize,
			Offset:      s.Offset,
			RawSize:     s.Size,
		}
	}

	return f, nil
}

// Close releases resources associated with the image.
func (f *File) Close() error {
	if f.closer != nil {
		closer := f.closer
		f.closer = nil
		return closer()
	}
	return nil
}

// ReaderAt returns the underlying byte source.
func (f *File) ReaderAt() io.ReaderAt {
	return f.data
}

// Size returns the total size of the image in bytes.
func (f *File) Size() int64 {
	return f.size
}

// Machine returns the COFF machine type.
func (f *File) Machine() uint16 {
	return f.machine
}

// ImageBase returns the preferred load address from the optional header.
func (f *File) ImageBase() uint64 {
	return f.imageBase
}

// Sections returns the section descriptors in header order.
func (f *File) Sections() []Section {
	return f.sections
}

// CLIHeader returns the CLI header.
// The header is lazily loaded on first access.
func (f *File) CLIHeader() (*CLIHeader, error) {
	f.cliOnce.Do(func() {
		f.cli, f.cliErr = f.loadCLIHeader()
	})

	if f.cliErr != nil {
		return nil, f.cliErr
	}
	return f.cli, nil
}

func (f *File) loadCLIHeader() (*CLIHeader, error) {
	if f.comDir.VirtualAddress == 0 || f.comDir.Size == 0 {
		return nil, ErrNotManaged
	}

	off, err := f.Resolve(f.comDir.VirtualAddress, f.comDir.Size)
	if err != nil {
		return nil, fmt.Errorf("image: CLI header: %w", err)
	}
	if off+CLIHeaderSize > f.size {
		return nil, fmt.Errorf("image: CLI header at 0x%x: %w", off, ErrTruncatedFile)
	}

	var h CLIHeader
	if err := binary.Read(io.NewSectionReader(f.data, off, CLIHeaderSize), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("image: failed to read CLI header: %w", err)
	}
	return &h, nil
}

// MetadataOffset returns the file offset and size of the metadata block
// named by the CLI header.
func (f *File) MetadataOffset() (int64, uint32, error) {
	cli, err := f.CLIHeader()
	if err != nil {
		return 0, 0, err
	}

	off, err := f.Resolve(cli.Metadata.VirtualAddress, cli.Metadata.Size)
	if err != nil {
		return 0, 0, fmt.Errorf("image: metadata root: %w", err)
	}
	if off+int64(cli.Metadata.Size) > f.size {
		return 0, 0, fmt.Errorf("image: metadata block at 0x%x: %w", off, ErrTruncatedFile)
	}
	return off, cli.Metadata.Size, nil
}
