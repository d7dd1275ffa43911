package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseTranslate,
				Kind:   KindInvalidEnum,
				Path:   []string{"readerOptions", "binarizer"},
				GoType: "string",
				Detail: "unknown binarizer",
			},
			contains: []string{"[translate]", "invalid_enum", "readerOptions.binarizer", "string", "unknown binarizer"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMemory,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[memory]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseMarshal,
				Kind:   KindAllocation,
				Detail: "arena exhausted",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[marshal]", "allocation", "arena exhausted", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ForeignCall(PhaseRead, "read_barcodes_from_image", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := InvalidInputType(42)

	if !errors.Is(err, ErrInvalidInputType) {
		t.Error("Is should match the invalid input sentinel")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("Is should not match a different phase and kind")
	}

	wrapped := fmt.Errorf("read: %w", err)
	if !errors.Is(wrapped, ErrInvalidInputType) {
		t.Error("errors.Is should see through fmt wrapping")
	}

	inst := Instantiation("reader", Integrity("scanx_reader.wasm", "aa", "bb"))
	if !errors.Is(inst, ErrInstantiation) {
		t.Error("instantiation error should match ErrInstantiation")
	}
	if !errors.Is(inst, ErrIntegrity) {
		t.Error("instantiation error should expose its integrity cause")
	}
}

func TestInvalidInputType_GoType(t *testing.T) {
	err := InvalidInputType(3.5)
	if err.GoType != "float64" {
		t.Errorf("GoType = %q, want float64", err.GoType)
	}
	if err.Value != 3.5 {
		t.Errorf("Value = %v, want 3.5", err.Value)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseTranslate, KindInvalidEnum).
		Path("writerOptions", "format").
		GoType("string").
		Value("QR").
		Cause(cause).
		Detail("expected %s, got %s", "QRCode", "QR").
		Build()

	if err.Phase != PhaseTranslate {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseTranslate)
	}
	if err.Kind != KindInvalidEnum {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidEnum)
	}
	if len(err.Path) != 2 || err.Path[1] != "format" {
		t.Errorf("Path = %v", err.Path)
	}
	if err.Value != "QR" {
		t.Errorf("Value = %v, want QR", err.Value)
	}
	if err.Detail != "expected QRCode, got QR" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not attached")
	}
}

func TestMissingExportsError(t *testing.T) {
	err := NewMissingExportsError("reader", []string{"read_barcodes_from_pixmap", "malloc"})

	msg := err.Error()
	for _, s := range []string{"reader engine", "2 export(s)", "malloc", "read_barcodes_from_pixmap"} {
		if !strings.Contains(msg, s) {
			t.Errorf("message %q does not contain %q", msg, s)
		}
	}
	if err.Exports[0] != "malloc" {
		t.Errorf("exports not sorted: %v", err.Exports)
	}

	var target *MissingExportsError
	if !errors.As(fmt.Errorf("wrap: %w", err), &target) {
		t.Error("errors.As should find MissingExportsError")
	}

	empty := NewMissingExportsError("writer", nil)
	if !strings.Contains(empty.Error(), "no exports specified") {
		t.Errorf("unexpected empty message %q", empty.Error())
	}
}
