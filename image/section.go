package image

import "fmt"

// Section describes one entry of the PE section table. Only the fields
// needed to translate addresses are kept.
type Section struct {
	Name        string
	RVA         uint32 // VirtualAddress of the section
	VirtualSize uint32
	Offset      uint32 // PointerToRawData
	RawSize     uint32 // SizeOfRawData
}

// Contains reports whether the region [rva, rva+size) lies in the section.
// The upper bound is strict: a region ending exactly at the end of the
// section's virtual size is not matched.
func (s *Section) Contains(rva, size uint32) bool {
	end := uint64(rva) + uint64(size)
	return s.RVA <= rva && end < uint64(s.RVA)+uint64(s.VirtualSize)
}

// Resolve translates an RVA to a file offset within this section.
func (s *Section) Resolve(rva uint32) int64 {
	return int64(s.Offset) + int64(rva-s.RVA)
}

// FindSection returns the first section that contains the region, or nil.
func FindSection(sections []Section, rva, size uint32) *Section {
	for i := range sections {
		if sections[i].Contains(rva, size) {
			return &sections[i]
		}
	}
	return nil
}

// Resolve maps a relative virtual address and size to a file offset using
// the section table.
func (f *File) Resolve(rva, size uint32) (int64, error) {
	sec := FindSection(f.sections, rva, size)
	if sec == nil {
		return 0, fmt.Errorf("%w: rva 0x%x size 0x%x", ErrUnmappedRegion, rva, size)
	}
	return sec.Resolve(rva), nil
}
