package clr

import (
	"fmt"

	"github.com/skdltmxn/clrrefs/image"
	"github.com/skdltmxn/clrrefs/internal/tables"
	"github.com/skdltmxn/clrrefs/metadata"
)

// Info summarises the headers of a managed image.
type Info struct {
	Machine   uint16
	ImageBase uint64
	Sections  []image.Section
	CLI       *image.CLIHeader

	MetadataOffset  int64
	MetadataVersion string
	RuntimeVersion  string
	Streams         []*metadata.Stream

	TablesVersion string
	HeapSizes     uint8

	// GUIDs is the number of records in the #GUID heap.
	GUIDs int

	// Module is nil when the Module table is empty.
	Module *ModuleInfo

	// Assembly is nil for images without a manifest, such as netmodules.
	Assembly *AssemblyInfo

	// AssemblyRefs lists referenced assembly names in table order.
	AssemblyRefs []string
}

// ModuleInfo identifies the module defined by the image.
type ModuleInfo struct {
	Name string
	MVID metadata.GUID
}

// AssemblyInfo identifies the assembly defined by the image.
type AssemblyInfo struct {
	Name    string
	Version string
	Culture string
}

// Info reads the image headers and the identity rows of the metadata.
func (f *File) Info() (*Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFileClosed
	}

	cli, err := f.img.CLIHeader()
	if err != nil {
		return nil, &ParseError{Stage: StageImage, Message: "failed to read CLI header", Err: err}
	}
	root, err := f.getRoot()
	if err != nil {
		return nil, err
	}
	layout, err := f.getLayout()
	if err != nil {
		return nil, err
	}
	strs, err := f.getStrings()
	if err != nil {
		return nil, err
	}
	guids, err := f.getGUIDs()
	if err != nil {
		return nil, err
	}

	info := &Info{
		Machine:         f.img.Machine(),
		ImageBase:       f.img.ImageBase(),
		Sections:        f.img.Sections(),
		CLI:             cli,
		MetadataOffset:  root.Offset,
		MetadataVersion: fmt.Sprintf("%d.%d", root.MajorVersion, root.MinorVersion),
		RuntimeVersion:  root.Version,
		Streams:         root.Streams.All(),
		TablesVersion:   fmt.Sprintf("%d.%d", layout.Header.MajorVersion, layout.Header.MinorVersion),
		HeapSizes:       layout.Header.HeapSizes,
		GUIDs:           guids.Len(),
	}

	wrap := func(err error) error {
		return &ParseError{Stage: StageTables, Offset: layout.Header.TablesOffset, Message: "failed to read identity rows", Err: err}
	}

	if layout.Rows(tables.Module) > 0 {
		off, _ := layout.RowOffset(tables.Module, 0)
		m, err := layout.ModuleAt(f.r, off)
		if err != nil {
			return nil, wrap(err)
		}
		name, err := strs.String(f.r, m.Name)
		if err != nil {
			return nil, wrap(err)
		}
		mvid, err := guids.GUID(f.r, m.Mvid)
		if err != nil {
			return nil, wrap(err)
		}
		info.Module = &ModuleInfo{Name: name, MVID: mvid}
	}

	if layout.Rows(tables.Assembly) > 0 {
		off, _ := layout.RowOffset(tables.Assembly, 0)
		a, err := layout.AssemblyAt(f.r, off)
		if err != nil {
			return nil, wrap(err)
		}
		name, err := strs.String(f.r, a.Name)
		if err != nil {
			return nil, wrap(err)
		}
		culture, err := strs.String(f.r, a.Culture)
		if err != nil {
			return nil, wrap(err)
		}
		info.Assembly = &AssemblyInfo{
			Name:    name,
			Version: fmt.Sprintf("%d.%d.%d.%d", a.MajorVersion, a.MinorVersion, a.BuildNumber, a.RevisionNumber),
			Culture: culture,
		}
	}

	refs := layout.Table(tables.AssemblyRef)
	info.AssemblyRefs = make([]string, 0, refs.Rows)
	for i := int64(0); i < int64(refs.Rows); i++ {
		ar, err := layout.AssemblyRefAt(f.r, refs.Offset+i*int64(refs.RowSize))
		if err != nil {
			return nil, wrap(err)
		}
		name, err := strs.String(f.r, ar.Name)
		if err != nil {
			return nil, wrap(err)
		}
		info.AssemblyRefs = append(info.AssemblyRefs, name)
	}

	return info, nil
}
