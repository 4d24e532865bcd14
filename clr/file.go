package clr

import (
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/skdltmxn/clrrefs/image"
	"github.com/skdltmxn/clrrefs/internal/resolve"
	"github.com/skdltmxn/clrrefs/internal/stream"
	"github.com/skdltmxn/clrrefs/internal/tables"
	"github.com/skdltmxn/clrrefs/metadata"
)

// Reference is one external type together with the assembly that owns it.
type Reference = resolve.Reference

// Options controls reference resolution.
type Options = resolve.Options

// File represents an opened managed image.
// Methods may be called from several goroutines; they serialise on the
// shared reader.
type File struct {
	img    *image.File
	r      *stream.Reader
	closed bool
	mu     sync.Mutex

	// Lazy-loaded layers
	root     *metadata.Root
	rootOnce sync.Once
	rootErr  error

	layout     *tables.Layout
	layoutOnce sync.Once
	layoutErr  error

	strs     *metadata.StringHeap
	strsOnce sync.Once
	strsErr  error

	guids     *metadata.GUIDHeap
	guidsOnce sync.Once
	guidsErr  error
}

// Open opens a managed image from the given path.
func Open(path string) (*File, error) {
	img, err := image.Open(path)
	if err != nil {
		return nil, err
	}
	Logger().Debug("opened image", zap.String("path", path), zap.Int64("size", img.Size()))
	return newFile(img), nil
}

// OpenReader opens a managed image from an io.ReaderAt.
func OpenReader(r io.ReaderAt, size int64) (*File, error) {
	img, err := image.NewFile(r, size)
	if err != nil {
		return nil, err
	}
	return newFile(img), nil
}

func newFile(img *image.File) *File {
	return &File{
		img: img,
		r:   stream.NewReader(img.ReaderAt(), img.Size()),
	}
}

// Close releases resources associated with the file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true
	return f.img.Close()
}

// Image returns the PE container.
func (f *File) Image() *image.File {
	return f.img
}

// Metadata returns the metadata root and its stream directory.
func (f *File) Metadata() (*metadata.Root, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFileClosed
	}
	return f.getRoot()
}

// Tables returns the layout of the #~ stream.
func (f *File) Tables() (*tables.Layout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFileClosed
	}
	return f.getLayout()
}

// References resolves every TypeRef row and returns the references that
// pass opts.Filter, in table order.
func (f *File) References(opts Options) ([]Reference, error) {
	refs := make([]Reference, 0)
	err := f.WalkReferences(opts, func(ref Reference) error {
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// WalkReferences calls fn for each resolved reference in table order.
// An error returned by fn stops the walk and is returned unchanged.
func (f *File) WalkReferences(opts Options, fn func(Reference) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFileClosed
	}

	w, err := f.walker(opts)
	if err != nil {
		return err
	}

	var userErr error
	err = w.Walk(func(ref Reference) error {
		userErr = fn(ref)
		return userErr
	})
	if err == nil {
		return nil
	}
	if userErr != nil {
		return userErr
	}
	return &ParseError{
		Stage:   StageResolve,
		Offset:  f.layout.Table(tables.TypeRef).Offset,
		Message: "failed to resolve type references",
		Err:     err,
	}
}

func (f *File) walker(opts Options) (*resolve.Walker, error) {
	layout, err := f.getLayout()
	if err != nil {
		return nil, err
	}
	strs, err := f.getStrings()
	if err != nil {
		return nil, err
	}
	// The walk never reads #GUID, but an image without it is malformed.
	if _, err := f.getGUIDs(); err != nil {
		return nil, err
	}

	w, err := resolve.New(f.r, layout, strs, opts)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (f *File) getRoot() (*metadata.Root, error) {
	f.rootOnce.Do(func() {
		f.root, f.rootErr = f.loadRoot()
	})
	return f.root, f.rootErr
}

func (f *File) loadRoot() (*metadata.Root, error) {
	off, size, err := f.img.MetadataOffset()
	if err != nil {
		return nil, &ParseError{
			Stage:   StageImage,
			Message: "failed to locate metadata",
			Err:     err,
		}
	}

	root, err := metadata.ReadRoot(f.r, off)
	if err != nil {
		return nil, &ParseError{
			Stage:   StageMetadata,
			Offset:  off,
			Message: "failed to read metadata root",
			Err:     err,
		}
	}

	Logger().Debug("read metadata root",
		zap.Int64("offset", off),
		zap.Uint32("size", size),
		zap.String("version", root.Version),
		zap.Int("streams", root.Streams.Len()),
		zap.Strings("names", root.Streams.Names))
	return root, nil
}

func (f *File) getLayout() (*tables.Layout, error) {
	f.layoutOnce.Do(func() {
		f.layout, f.layoutErr = f.loadLayout()
	})
	return f.layout, f.layoutErr
}

func (f *File) loadLayout() (*tables.Layout, error) {
	root, err := f.getRoot()
	if err != nil {
		return nil, err
	}

	s, err := root.Stream(metadata.StreamTables)
	if err != nil {
		return nil, &ParseError{
			Stage:   StageMetadata,
			Offset:  root.Offset,
			Message: "no tables stream",
			Err:     err,
		}
	}

	layout, err := tables.Load(f.r, s)
	if err != nil {
		return nil, &ParseError{
			Stage:   StageTables,
			Offset:  s.Offset,
			Message: "failed to lay out tables",
			Err:     err,
		}
	}

	Logger().Debug("laid out tables",
		zap.Int("present", len(layout.Kinds())),
		zap.Uint32("typeRefs", layout.Rows(tables.TypeRef)),
		zap.Uint32("assemblyRefs", layout.Rows(tables.AssemblyRef)))
	return layout, nil
}

func (f *File) getStrings() (*metadata.StringHeap, error) {
	f.strsOnce.Do(func() {
		f.strs, f.strsErr = f.loadStrings()
	})
	return f.strs, f.strsErr
}

func (f *File) loadStrings() (*metadata.StringHeap, error) {
	root, err := f.getRoot()
	if err != nil {
		return nil, err
	}

	s, err := root.Stream(metadata.StreamStrings)
	if err != nil {
		return nil, &ParseError{
			Stage:   StageMetadata,
			Offset:  root.Offset,
			Message: "no strings heap",
			Err:     err,
		}
	}
	return metadata.NewStringHeap(s), nil
}

func (f *File) getGUIDs() (*metadata.GUIDHeap, error) {
	f.guidsOnce.Do(func() {
		f.guids, f.guidsErr = f.loadGUIDs()
	})
	return f.guids, f.guidsErr
}

func (f *File) loadGUIDs() (*metadata.GUIDHeap, error) {
	root, err := f.getRoot()
	if err != nil {
		return nil, err
	}

	s, err := root.Stream(metadata.StreamGUID)
	if err != nil {
		return nil, &ParseError{
			Stage:   StageMetadata,
			Offset:  root.Offset,
			Message: "no GUID heap",
			Err:     err,
		}
	}
	return metadata.NewGUIDHeap(s), nil
}
