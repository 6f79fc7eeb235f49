package wasmspec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// Writer is anything the codec helpers can append bytes to. Every
// section builder in internal/assembler writes into a bytes.Buffer that
// satisfies this, matching the teacher's own writer contract.
type Writer interface {
	io.Writer
	io.ByteWriter
}

// PutUvarint appends value as unsigned LEB128.
func PutUvarint(w Writer, value uint64) error {
	for {
		b := byte(value & 0x7F)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
		if value == 0 {
			return nil
		}
	}
}

// PutVarint appends value as signed LEB128, used for i32.const/i64.const
// immediates and block-type bytes.
func PutVarint(w Writer, value int64) error {
	for {
		b := byte(value & 0x7F)
		value >>= 7
		signBitSet := b&0x40 != 0
		done := (value == 0 && !signBitSet) || (value == -1 && signBitSet)
		if !done {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// PutF64 appends value as little-endian IEEE-754 binary64, the encoding
// f64.const immediates use.
func PutF64(w Writer, value float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(value))
	_, err := w.Write(buf[:])
	return err
}

// PutF32 appends value as little-endian IEEE-754 binary32.
func PutF32(w Writer, value float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(value))
	_, err := w.Write(buf[:])
	return err
}

// PutName appends a length-prefixed UTF-8 string, the encoding used for
// import/export names and the custom name section.
func PutName(w Writer, name string) error {
	if err := PutUvarint(w, uint64(len(name))); err != nil {
		return err
	}
	_, err := w.Write([]byte(name))
	return err
}

// ByteReader is what the decode helpers read from; *bytes.Reader
// satisfies it, matching the teacher's own parser.
type ByteReader interface {
	io.ByteReader
	io.Reader
}

// ReadUvarint reads an unsigned LEB128 value.
func ReadUvarint(r ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// ReadVarint reads a signed LEB128 value.
func ReadVarint(r ByteReader) (int64, error) {
	var result int64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
}

// ReadF64 reads a little-endian IEEE-754 binary64 value.
func ReadF64(r ByteReader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadF32 reads a little-endian IEEE-754 binary32 value.
func ReadF32(r ByteReader) (float32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadName reads a length-prefixed UTF-8 string.
func ReadName(r ByteReader) (string, error) {
	n, err := ReadUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// NewBuffer returns a fresh section-body buffer; section writers build
// their contents here before the caller prefixes the section id and
// LEB128-encoded length, exactly as the teacher's section writers do.
func NewBuffer() *bytes.Buffer { return new(bytes.Buffer) }
