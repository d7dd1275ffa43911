package scanx

import "context"

// Version and CppCommit identify the engine build this binding targets.
// Release builds set them with -ldflags "-X".
var (
	Version   = "2.2.0"
	CppCommit = "unknown"
)

// Memory is a view of an engine's linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	Size() uint32
}

// Allocator allocates memory inside the engine's own arena.
// Memory returned by Malloc is never reclaimed by the Go garbage collector;
// every successful Malloc must be paired with a Free.
type Allocator interface {
	Malloc(ctx context.Context, size uint32) (uint32, error)
	Free(ctx context.Context, ptr uint32) error
}
