package wire

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// Reader reads little-endian fields from a decrypted packet payload. Byte 0
// is always the opcode, as in the teacher's internal/net/packet.Reader.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1}
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// Byte reads 1 unsigned byte.
func (r *Reader) Byte() byte {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// Bool reads 1 byte as a boolean (nonzero = true).
func (r *Reader) Bool() bool { return r.Byte() != 0 }

// Uint16 reads 2 bytes little-endian.
func (r *Reader) Uint16() uint16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// Int32 reads 4 bytes little-endian, signed.
func (r *Reader) Int32() int32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.off:]))
	r.off += 4
	return v
}

// Uint32 reads 4 bytes little-endian, unsigned.
func (r *Reader) Uint32() uint32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// Uint64 reads 8 bytes little-endian, unsigned — entity ids are 64-bit per §9.
func (r *Reader) Uint64() uint64 {
	if r.off+8 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// Float32 reads 4 bytes little-endian as an IEEE-754 float.
func (r *Reader) Float32() float32 {
	return math.Float32frombits(r.Uint32())
}

// String reads a null-terminated UTF-16LE string and returns UTF-8.
func (r *Reader) String() string {
	start := r.off
	for r.off+1 < len(r.data) {
		if r.data[r.off] == 0 && r.data[r.off+1] == 0 {
			raw := r.data[start:r.off]
			r.off += 2 // skip the 2-byte null terminator
			return utf16leToUTF8(raw)
		}
		r.off += 2
	}
	remaining := r.data[start:r.off]
	r.off = len(r.data)
	return utf16leToUTF8(remaining)
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) []byte {
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func utf16leToUTF8(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
