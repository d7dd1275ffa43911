package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // override and deployment configuration
	PhaseLoad        Phase = "load"        // locating and fetching the engine binary
	PhaseInstantiate Phase = "instantiate" // engine instantiation
	PhaseMarshal     Phase = "marshal"     // host bytes to linear memory
	PhaseRead        Phase = "read"        // read entry points
	PhaseWrite       Phase = "write"       // write entry points
	PhaseTranslate   Phase = "translate"   // flat struct <-> host types
	PhaseMemory      Phase = "memory"      // raw linear memory access
)

// Kind categorizes the error
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindInstantiation Kind = "instantiation"
	KindInvalidInput  Kind = "invalid_input"
	KindAllocation    Kind = "allocation"
	KindForeignCall   Kind = "foreign_call"
	KindOutOfBounds   Kind = "out_of_bounds"
	KindInvalidEnum   Kind = "invalid_enum"
	KindFieldMissing  Kind = "field_missing"
	KindMissingExport Kind = "missing_export"
	KindIntegrity     Kind = "integrity"
	KindUnsupported   Kind = "unsupported"
	KindNotFound      Kind = "not_found"
	KindInvalidData   Kind = "invalid_data"
)

// Sentinels for errors.Is. Matching uses Phase and Kind only.
var (
	ErrConfiguration    = &Error{Phase: PhaseConfig, Kind: KindConfiguration}
	ErrInstantiation    = &Error{Phase: PhaseInstantiate, Kind: KindInstantiation}
	ErrInvalidInputType = &Error{Phase: PhaseMarshal, Kind: KindInvalidInput}
	ErrIntegrity        = &Error{Phase: PhaseLoad, Kind: KindIntegrity}
)

// Error is the structured error type used throughout the binding
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Configuration creates a configuration error. These are returned before any
// instantiation is attempted.
func Configuration(detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindConfiguration,
		Detail: detail,
	}
}

// Instantiation wraps an engine instantiation failure
func Instantiation(variant string, cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: fmt.Sprintf("instantiate %s engine", variant),
		Cause:  cause,
	}
}

// InvalidInputType reports a read input that matches none of the accepted shapes
func InvalidInputType(v any) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindInvalidInput,
		GoType: fmt.Sprintf("%T", v),
		Detail: "invalid input type",
		Value:  v,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
		Value:  size,
	}
}

// ForeignCall wraps a failure raised inside an engine entry point
func ForeignCall(phase Phase, entry string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindForeignCall,
		Detail: fmt.Sprintf("call %s", entry),
		Cause:  cause,
	}
}

// OutOfBounds creates a linear memory out of bounds error
func OutOfBounds(offset, length uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset %d length %d out of bounds", offset, length),
		Value:  offset,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Path:   path,
		Detail: fmt.Sprintf("invalid enum value %v for %s", value, enumType),
		Value:  value,
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not set", fieldName),
	}
}

// Integrity reports a binary whose digest does not match the expected one
func Integrity(location, want, got string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindIntegrity,
		Detail: fmt.Sprintf("sha256 mismatch for %s: want %s, got %s", location, want, got),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Load creates a binary loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingExportsError is returned when an engine binary lacks entry points
// its variant requires
type MissingExportsError struct {
	Variant string
	Exports []string
}

// NewMissingExportsError creates an error listing the absent export names
func NewMissingExportsError(variant string, exports []string) *MissingExportsError {
	names := append([]string(nil), exports...)
	sort.Strings(names)
	return &MissingExportsError{Variant: variant, Exports: names}
}

func (e *MissingExportsError) Error() string {
	if len(e.Exports) == 0 {
		return "[instantiate] missing_export: no exports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s engine is missing %d export(s):", e.Variant, len(e.Exports)))
	for _, name := range e.Exports {
		b.WriteString("\n  - ")
		b.WriteString(name)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingExportsError) Is(target error) bool {
	switch t := target.(type) {
	case *MissingExportsError:
		return true
	case *Error:
		return t.Phase == PhaseInstantiate && t.Kind == KindMissingExport
	}
	return false
}
