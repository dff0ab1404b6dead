package wasmbin

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrUnexpectedEOF = errors.New("unexpected end of input")
	ErrLEBOverflow   = errors.New("integer representation too long")
)

// Reader is a cursor over a byte slice with LEB128 helpers.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current offset into the underlying buffer.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) Len() int { return len(r.buf) - r.pos }

func (r *Reader) EOF() bool { return r.pos >= len(r.buf) }

// Slice returns buf[from:to] of the underlying buffer.
func (r *Reader) Slice(from, to int) []byte { return r.buf[from:to] }

func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) Skip(n int) error {
	_, err := r.ReadBytes(n)
	return err
}

func (r *Reader) readUnsigned(bits uint) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift >= bits {
			return 0, ErrLEBOverflow
		}
		// bits that do not fit must be zero in the last byte
		if shift+7 > bits && uint64(b&0x7f)>>(bits-shift) != 0 {
			return 0, ErrLEBOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

func (r *Reader) readSigned(bits uint) (int64, error) {
	var result int64
	var shift uint
	var b byte
	for {
		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift >= bits {
			return 0, ErrLEBOverflow
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.readUnsigned(32)
	return uint32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	return r.readUnsigned(64)
}

func (r *Reader) ReadS32() (int32, error) {
	v, err := r.readSigned(32)
	return int32(v), err
}

// ReadS33 reads a block type or heap type.
func (r *Reader) ReadS33() (int64, error) {
	return r.readSigned(33)
}

func (r *Reader) ReadS64() (int64, error) {
	return r.readSigned(64)
}

// ReadName reads a length-prefixed UTF-8 string.
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("invalid UTF-8 in name at offset %d", r.pos-len(b))
	}
	return string(b), nil
}

// ReadValueType reads a value type, including the (ref null? ht) forms.
func (r *Reader) ReadValueType() (ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt := ValueType(b)
	switch vt {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeV128,
		ValueTypeFuncRef, ValueTypeExternRef, ValueTypeExnRef:
		return vt, nil
	case ValueTypeRef, ValueTypeRefNull:
		if _, err := r.ReadS33(); err != nil {
			return 0, err
		}
		return vt, nil
	default:
		return 0, fmt.Errorf("unknown value type 0x%x", b)
	}
}
