// Package resolve follows TypeRef resolution scopes to the assembly that
// owns each referenced type.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/skdltmxn/clrrefs/internal/stream"
	"github.com/skdltmxn/clrrefs/internal/tables"
	"github.com/skdltmxn/clrrefs/metadata"
)

// DefaultMaxDepth bounds the number of TypeRef rows in one scope chain.
const DefaultMaxDepth = 256

const nameCacheSize = 1024

// Errors
var (
	ErrScopeCycle = errors.New("resolve: resolution scope chain does not terminate")
	ErrBadScope   = errors.New("resolve: unsupported resolution scope")
)

// Reference is one resolved external type.
type Reference struct {
	// Assembly is the name of the owning assembly. For local references it
	// is the Module or ModuleRef name.
	Assembly string

	// Type is the dotted name, outermost namespace first.
	Type string

	// Local is set when the chain ended in Module or ModuleRef.
	Local bool
}

// Matcher decides whether references owned by an assembly are reported.
type Matcher interface {
	Match(assembly string) bool
}

// Options controls a Walker.
type Options struct {
	// Filter selects assemblies. Nil reports every reference.
	Filter Matcher

	// IncludeLocal reports chains that end in Module or ModuleRef instead
	// of dropping them.
	IncludeLocal bool

	// IncludeEnclosing also reports TypeRef rows that only serve as the
	// scope of a nested TypeRef.
	IncludeEnclosing bool

	// MaxDepth bounds a scope chain. Zero means DefaultMaxDepth.
	MaxDepth int
}

// Walker resolves the TypeRef table of one metadata block.
// A Walker shares the reader with its caller and is not safe for concurrent
// use.
type Walker struct {
	r       *stream.Reader
	layout  *tables.Layout
	strings *metadata.StringHeap
	opts    Options

	names *lru.Cache[nameKey, string]
}

type nameKey struct {
	table tables.Kind
	row   int64
}

// New creates a Walker over the given layout and #Strings heap.
func New(r *stream.Reader, layout *tables.Layout, strs *metadata.StringHeap, opts Options) (*Walker, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	names, err := lru.New[nameKey, string](nameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolve: name cache: %w", err)
	}
	return &Walker{
		r:       r,
		layout:  layout,
		strings: strs,
		opts:    opts,
		names:   names,
	}, nil
}

// frame is one pending step of the walk.
type frame struct {
	table  tables.Kind
	offset int64

	// outer marks the driver frame that iterates the TypeRef table.
	outer bool
}

// chain accumulates the names of the scope chain being followed.
type chain struct {
	names   []string
	visited map[int64]struct{}

	// silent chains are followed for validation but not reported.
	silent bool
}

func (c *chain) reset() {
	c.names = c.names[:0]
	clear(c.visited)
	c.silent = false
}

// qualified joins the names collected so far, outermost first.
func (c *chain) qualified() string {
	parts := make([]string, len(c.names))
	for i, n := range c.names {
		parts[len(parts)-1-i] = n
	}
	return strings.Join(parts, ".")
}

// Walk resolves every TypeRef row in table order and calls fn for each
// reference that passes the filter. An error from fn stops the walk and is
// returned as is.
func (w *Walker) Walk(fn func(Reference) error) error {
	return w.walk(0, w.layout.Rows(tables.TypeRef), !w.opts.IncludeEnclosing, fn)
}

// All collects the result of Walk.
func (w *Walker) All() ([]Reference, error) {
	var refs []Reference
	err := w.Walk(func(ref Reference) error {
		refs = append(refs, ref)
		return nil
	})
	return refs, err
}

// Resolve follows the scope chain of a single zero-based TypeRef row.
// The bool result is false when the chain produced no reference.
func (w *Walker) Resolve(row int64) (Reference, bool, error) {
	var (
		ref   Reference
		found bool
	)
	err := w.walk(row, 1, false, func(r Reference) error {
		ref, found = r, true
		return nil
	})
	return ref, found, err
}

func (w *Walker) walk(start int64, count uint32, skipEnclosing bool, fn func(Reference) error) error {
	if count == 0 {
		return nil
	}
	first, err := w.layout.RowOffset(tables.TypeRef, start)
	if err != nil {
		return err
	}
	rowSize := int64(w.layout.Table(tables.TypeRef).RowSize)

	var enclosing map[int64]bool
	if skipEnclosing {
		if enclosing, err = w.enclosingRows(); err != nil {
			return err
		}
	}

	log := Logger()
	c := &chain{visited: make(map[int64]struct{})}
	stack := make([]frame, 0, 8)
	stack = append(stack, frame{table: tables.TypeRef, offset: first, outer: true})
	remaining := count

	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]

		switch f.table {
		case tables.TypeRef:
			row, err := w.layout.RowAt(tables.TypeRef, f.offset)
			if err != nil {
				return err
			}

			if f.outer {
				// The driver frame stays on the stack while rows remain.
				if remaining > 1 {
					stack[top].offset += rowSize
					remaining--
				} else {
					stack = stack[:top]
				}
				c.reset()
				c.silent = enclosing[row]
			} else {
				stack = stack[:top]
			}

			next, ok, err := w.follow(c, row, f.offset)
			if err != nil {
				return err
			}
			if !ok {
				log.Debug("null resolution scope", zap.Int64("row", row))
				c.reset()
				continue
			}
			stack = append(stack, next)

		case tables.AssemblyRef:
			stack = stack[:top]
			if len(c.names) == 0 || c.silent {
				log.Debug("skipping enclosing type reference", zap.String("type", c.qualified()))
				c.reset()
				continue
			}
			name, err := w.assemblyName(f.offset)
			if err != nil {
				return err
			}
			ref := Reference{Assembly: name, Type: c.qualified()}
			c.reset()
			if err := w.emit(ref, fn); err != nil {
				return err
			}

		case tables.Module, tables.ModuleRef:
			stack = stack[:top]
			if !w.opts.IncludeLocal || len(c.names) == 0 || c.silent {
				log.Debug("dropping local type reference",
					zap.Stringer("scope", f.table), zap.String("type", c.qualified()))
				c.reset()
				continue
			}
			name, err := w.localName(f)
			if err != nil {
				return err
			}
			ref := Reference{Assembly: name, Type: c.qualified(), Local: true}
			c.reset()
			if err := w.emit(ref, fn); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: %s", ErrBadScope, f.table)
		}
	}

	return nil
}

// follow records the names of the TypeRef row at offset and returns the
// frame of its resolution scope. ok is false for a null scope.
func (w *Walker) follow(c *chain, row, offset int64) (frame, bool, error) {
	if _, seen := c.visited[row]; seen {
		return frame{}, false, fmt.Errorf("%w: TypeRef row %d revisited", ErrScopeCycle, row)
	}
	if len(c.visited) >= w.opts.MaxDepth {
		return frame{}, false, fmt.Errorf("%w: deeper than %d at TypeRef row %d", ErrScopeCycle, w.opts.MaxDepth, row)
	}
	c.visited[row] = struct{}{}

	tr, err := w.layout.TypeRefAt(w.r, offset)
	if err != nil {
		return frame{}, false, err
	}

	name, err := w.strings.String(w.r, tr.TypeName)
	if err != nil {
		return frame{}, false, fmt.Errorf("resolve: TypeRef row %d name: %w", row, err)
	}
	c.names = append(c.names, name)
	if tr.TypeNamespace != 0 {
		ns, err := w.strings.String(w.r, tr.TypeNamespace)
		if err != nil {
			return frame{}, false, fmt.Errorf("resolve: TypeRef row %d namespace: %w", row, err)
		}
		if ns != "" {
			c.names = append(c.names, ns)
		}
	}

	kind, next, err := tables.Decode(tables.ResolutionScope, tr.ResolutionScope)
	if err != nil {
		return frame{}, false, fmt.Errorf("resolve: TypeRef row %d: %w", row, err)
	}
	if next < 0 {
		return frame{}, false, nil
	}
	off, err := w.layout.RowOffset(kind, next)
	if err != nil {
		return frame{}, false, fmt.Errorf("resolve: TypeRef row %d scope: %w", row, err)
	}
	return frame{table: kind, offset: off}, true, nil
}

func (w *Walker) emit(ref Reference, fn func(Reference) error) error {
	if w.opts.Filter != nil && !w.opts.Filter.Match(ref.Assembly) {
		Logger().Debug("filtered type reference",
			zap.String("assembly", ref.Assembly), zap.String("type", ref.Type))
		return nil
	}
	return fn(ref)
}

func (w *Walker) assemblyName(offset int64) (string, error) {
	row, err := w.layout.RowAt(tables.AssemblyRef, offset)
	if err != nil {
		return "", err
	}
	key := nameKey{tables.AssemblyRef, row}
	if name, ok := w.names.Get(key); ok {
		return name, nil
	}

	ar, err := w.layout.AssemblyRefAt(w.r, offset)
	if err != nil {
		return "", err
	}
	name, err := w.strings.String(w.r, ar.Name)
	if err != nil {
		return "", fmt.Errorf("resolve: AssemblyRef row %d name: %w", row, err)
	}
	w.names.Add(key, name)
	return name, nil
}

func (w *Walker) localName(f frame) (string, error) {
	row, err := w.layout.RowAt(f.table, f.offset)
	if err != nil {
		return "", err
	}
	key := nameKey{f.table, row}
	if name, ok := w.names.Get(key); ok {
		return name, nil
	}

	var index uint32
	if f.table == tables.Module {
		m, err := w.layout.ModuleAt(w.r, f.offset)
		if err != nil {
			return "", err
		}
		index = m.Name
	} else {
		m, err := w.layout.ModuleRefAt(w.r, f.offset)
		if err != nil {
			return "", err
		}
		index = m.Name
	}

	name, err := w.strings.String(w.r, index)
	if err != nil {
		return "", fmt.Errorf("resolve: %s row %d name: %w", f.table, row, err)
	}
	w.names.Add(key, name)
	return name, nil
}

// enclosingRows returns the TypeRef rows that are the resolution scope of
// another TypeRef row.
func (w *Walker) enclosingRows() (map[int64]bool, error) {
	t := w.layout.Table(tables.TypeRef)
	out := make(map[int64]bool)
	for i := int64(0); i < int64(t.Rows); i++ {
		tr, err := w.layout.TypeRefAt(w.r, t.Offset+i*int64(t.RowSize))
		if err != nil {
			return nil, err
		}
		kind, row, err := tables.Decode(tables.ResolutionScope, tr.ResolutionScope)
		if err != nil {
			return nil, fmt.Errorf("resolve: TypeRef row %d: %w", i, err)
		}
		if kind == tables.TypeRef && row >= 0 {
			out[row] = true
		}
	}
	return out, nil
}
