// Package errors provides structured error types for the scanx binding.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the field path, the offending Go type and
// the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTranslate, errors.KindInvalidEnum).
//		Path("readerOptions", "binarizer").
//		Value("Sharpen").
//		Detail("unknown binarizer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidInputType(42)
//	err := errors.ForeignCall(errors.PhaseRead, "read_barcodes_from_image", cause)
//
// The taxonomy callers usually branch on:
//
//	Configuration  restricted deployment without an instantiation strategy
//	Instantiation  the engine failed to load; cached until overrides change
//	InvalidInput   read input matched no accepted shape; nothing was allocated
//	ForeignCall    the engine failed; its buffer was already freed
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind, so the exported sentinels work as targets:
//
//	if errors.Is(err, scanxerrors.ErrInvalidInputType) { ... }
package errors
