package enginetest

import (
	"encoding/binary"
	"sync"

	scanx "github.com/wippyai/scanx-wasm"
	"github.com/wippyai/scanx-wasm/errors"
)

// Memory is a fixed-size linear memory on the Go heap
type Memory struct {
	data []byte
	mu   sync.RWMutex
}

// NewMemory creates a memory of size bytes
func NewMemory(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) bounds(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return errors.OutOfBounds(offset, length)
	}
	return nil
}

func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.bounds(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length : offset+length], nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *Memory) WriteU8(offset uint32, v uint8) error {
	return m.Write(offset, []byte{v})
}

func (m *Memory) WriteU16(offset uint32, v uint16) error {
	return m.Write(offset, binary.LittleEndian.AppendUint16(nil, v))
}

func (m *Memory) WriteU32(offset uint32, v uint32) error {
	return m.Write(offset, binary.LittleEndian.AppendUint32(nil, v))
}

func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

var _ scanx.Memory = (*Memory)(nil)
