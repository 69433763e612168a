package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is a contract failure carrying a stable numeric code. Codes are the
// enum position within the module's taxonomy and never change once published.
type Error struct {
	Module string
	Code   uint32
	Name   string
}

// New constructs a coded contract error.
func New(module string, code uint32, name string) *Error {
	return &Error{Module: module, Code: code, Name: name}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Module, e.Name, e.Code)
}

// Is matches errors from the same module with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !stderrors.As(target, &other) {
		return false
	}
	return other.Module == e.Module && other.Code == e.Code
}

// CodeOf unwraps err looking for a coded contract error.
func CodeOf(err error) (*Error, bool) {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

// Taxonomy indexes a module's errors by code.
type Taxonomy struct {
	module string
	byCode map[uint32]*Error
}

// NewTaxonomy registers the ordered list of error names for module. The slice
// index becomes the code.
func NewTaxonomy(module string, names ...string) *Taxonomy {
	t := &Taxonomy{module: module, byCode: make(map[uint32]*Error, len(names))}
	for i, name := range names {
		t.byCode[uint32(i)] = New(module, uint32(i), name)
	}
	return t
}

// Get returns the error registered under name. It panics on unknown names so
// typos surface at package init.
func (t *Taxonomy) Get(name string) *Error {
	for _, err := range t.byCode {
		if err.Name == name {
			return err
		}
	}
	panic(fmt.Sprintf("%s: unknown error %q", t.module, name))
}

// Lookup resolves a code back to its error.
func (t *Taxonomy) Lookup(code uint32) (*Error, bool) {
	err, ok := t.byCode[code]
	return err, ok
}

// Module returns the module label.
func (t *Taxonomy) Module() string {
	return t.module
}

// Len returns the number of registered codes.
func (t *Taxonomy) Len() int {
	return len(t.byCode)
}
