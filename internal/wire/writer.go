package wire

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// Writer builds an outbound (synthetic or relayed) packet. All multi-byte
// fields are little-endian, mirroring the teacher's internal/net/packet.Writer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{buf: make([]byte, 0, 64)} }

func NewWriterWithOpcode(opcode byte) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.Byte(opcode)
	return w
}

func (w *Writer) Byte(v byte) { w.buf = append(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) Float32(v float32) { w.Uint32(math.Float32bits(v)) }

// String writes a null-terminated UTF-16LE string.
func (w *Writer) String(s string) {
	if s == "" {
		w.buf = append(w.buf, 0, 0)
		return
	}
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		w.buf = append(w.buf, []byte(s)...)
	} else {
		w.buf = append(w.buf, encoded...)
	}
	w.buf = append(w.buf, 0, 0)
}

func (w *Writer) Bytes(b []byte) { w.buf = append(w.buf, b...) }

// Finish returns the packet content padded to a 4-byte boundary, matching
// the teacher's ServerBasePacket-derived padding convention.
func (w *Writer) Finish() []byte {
	if pad := len(w.buf) % 4; pad != 0 {
		for i := pad; i < 4; i++ {
			w.buf = append(w.buf, 0)
		}
	}
	return w.buf
}

// Raw returns the packet content without padding.
func (w *Writer) Raw() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }
