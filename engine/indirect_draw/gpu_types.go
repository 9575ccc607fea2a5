package indirect_draw

import (
	_ "embed"
	"encoding/binary"
	"unsafe"
)

// GPUIndirectArgsSource is the canonical WGSL definition of the IndirectArgs struct.
// Matches GPUIndirectArgs layout exactly (20 bytes).
//
//go:embed assets/indirect_args.wgsl
var GPUIndirectArgsSource string

// IndirectArgsWords is the number of u32 words in one draw record.
const IndirectArgsWords = 5

// IndirectArgsSize is the byte size of one draw record.
const IndirectArgsSize = IndirectArgsWords * 4

// GPUIndirectArgs is the GPU-aligned DrawIndexedIndirect argument record.
// Matches the WGSL IndirectArgs struct layout exactly (see GPUIndirectArgsSource).
// An IndexCount of zero means the record draws nothing.
// Size: 20 bytes (5 × u32).
type GPUIndirectArgs struct {
	IndexCount    uint32 // offset 0: number of indices (or vertices) to draw
	InstanceCount uint32 // offset 4: number of instances
	FirstIndex    uint32 // offset 8: first index relative to the bound index range
	BaseVertex    int32  // offset 12: added to each index value (signed)
	FirstInstance uint32 // offset 16: first instance ID
}

// Size returns the size of the GPUIndirectArgs struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUIndirectArgs) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUIndirectArgs struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 20-byte buffer ready for GPU upload.
func (g *GPUIndirectArgs) Marshal() []byte {
	buf := make([]byte, IndirectArgsSize)
	binary.LittleEndian.PutUint32(buf[0:4], g.IndexCount)
	binary.LittleEndian.PutUint32(buf[4:8], g.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:12], g.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(g.BaseVertex))
	binary.LittleEndian.PutUint32(buf[16:20], g.FirstInstance)
	return buf
}

// DecodeIndirectArgs splits a little-endian indirect buffer into records. A trailing
// partial record is ignored.
//
// Parameters:
//   - data: the raw buffer contents
//
// Returns:
//   - []GPUIndirectArgs: one entry per whole record
func DecodeIndirectArgs(data []byte) []GPUIndirectArgs {
	out := make([]GPUIndirectArgs, len(data)/IndirectArgsSize)
	for i := range out {
		o := i * IndirectArgsSize
		out[i] = GPUIndirectArgs{
			IndexCount:    binary.LittleEndian.Uint32(data[o:]),
			InstanceCount: binary.LittleEndian.Uint32(data[o+4:]),
			FirstIndex:    binary.LittleEndian.Uint32(data[o+8:]),
			BaseVertex:    int32(binary.LittleEndian.Uint32(data[o+12:])),
			FirstInstance: binary.LittleEndian.Uint32(data[o+16:]),
		}
	}
	return out
}
