// Package filter selects assemblies by name.
package filter

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidPattern is returned for an expression that does not compile.
var ErrInvalidPattern = errors.New("filter: ill-formed regular expression")

// PatternError reports which expression failed to compile.
type PatternError struct {
	Expr string
	Err  error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%v: %q: %v", ErrInvalidPattern, e.Expr, e.Err)
}

func (e *PatternError) Unwrap() []error {
	return []error{ErrInvalidPattern, e.Err}
}

// Set is an ordered list of patterns. A name passes when any pattern
// matches all of it. An empty or nil Set passes every name.
type Set struct {
	exprs    []string
	patterns []*regexp.Regexp
}

// Compile builds a Set. Each expression must match the whole name, so "Lib"
// does not select "OtherLib".
func Compile(exprs []string) (*Set, error) {
	s := &Set{
		exprs:    make([]string, 0, len(exprs)),
		patterns: make([]*regexp.Regexp, 0, len(exprs)),
	}
	for _, expr := range exprs {
		re, err := regexp.Compile(`^(?:` + expr + `)$`)
		if err != nil {
			return nil, &PatternError{Expr: expr, Err: err}
		}
		s.exprs = append(s.exprs, expr)
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// Len returns the number of patterns.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// Exprs returns the source expressions in order.
func (s *Set) Exprs() []string {
	if s == nil {
		return nil
	}
	return s.exprs
}

// Index returns the position of the first pattern matching name, or -1.
func (s *Set) Index(name string) int {
	for i, re := range s.patterns {
		if re.MatchString(name) {
			return i
		}
	}
	return -1
}

// Match reports whether name passes the set.
func (s *Set) Match(name string) bool {
	if s.Len() == 0 {
		return true
	}
	return s.Index(name) >= 0
}
