// Package clr opens managed PE images and reports the external types their
// metadata references.
package clr

import (
	"errors"
	"fmt"

	"github.com/skdltmxn/clrrefs/image"
)

// Sentinel errors for common conditions.
var (
	// ErrOpen indicates the file could not be opened or mapped.
	ErrOpen = image.ErrOpen

	// ErrNotManaged indicates a PE image without a CLI header.
	ErrNotManaged = image.ErrNotManaged

	// ErrFileClosed indicates the file has been closed.
	ErrFileClosed = errors.New("clr: file is closed")
)

// Pipeline stages reported by ParseError
const (
	StageImage    = "image"
	StageMetadata = "metadata"
	StageTables   = "tables"
	StageResolve  = "resolve"
)

// ParseError provides detailed information about parsing failures.
type ParseError struct {
	Stage   string // Pipeline stage where the error occurred
	Offset  int64  // File offset of the structure being read
	Message string // Description of the error
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("clr: %s error at offset 0x%x: %s: %v",
			e.Stage, e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("clr: %s error at offset 0x%x: %s",
		e.Stage, e.Offset, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }
