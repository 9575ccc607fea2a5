package common

import (
	"encoding/binary"
	"math"
)

// WordSize is the byte size of one u32/f32 word in every GPU-resident table.
const WordSize = 4

// Words is a little-endian sequence of 4-byte words, used as the CPU staging
// mirror for GPU tables that mix u32 and f32 fields.
type Words []byte

// AppendUint32 appends v as one little-endian u32 word.
func (w Words) AppendUint32(v ...uint32) Words {
	for _, x := range v {
		w = binary.LittleEndian.AppendUint32(w, x)
	}
	return w
}

// AppendFloat32 appends v as little-endian f32 words.
func (w Words) AppendFloat32(v ...float32) Words {
	for _, x := range v {
		w = binary.LittleEndian.AppendUint32(w, math.Float32bits(x))
	}
	return w
}

// Len returns the number of whole words.
func (w Words) Len() int {
	return len(w) / WordSize
}

// Uint32At reads the u32 word at the given word index.
func (w Words) Uint32At(i int) uint32 {
	return binary.LittleEndian.Uint32(w[i*WordSize:])
}

// Float32At reads the f32 word at the given word index.
func (w Words) Float32At(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(w[i*WordSize:]))
}

// PutUint32At overwrites the u32 word at the given word index.
func (w Words) PutUint32At(i int, v uint32) {
	binary.LittleEndian.PutUint32(w[i*WordSize:], v)
}

// Uint32sToBytes encodes a u32 slice as little-endian bytes.
func Uint32sToBytes(v []uint32) []byte {
	return Words(make([]byte, 0, len(v)*WordSize)).AppendUint32(v...)
}

// BytesToUint32s decodes little-endian bytes into u32 words. Trailing bytes that
// do not fill a word are ignored.
func BytesToUint32s(b []byte) []uint32 {
	out := make([]uint32, len(b)/WordSize)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*WordSize:])
	}
	return out
}
