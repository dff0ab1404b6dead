package opcode

import (
	"fmt"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
)

// Instruction is one decoded instruction. Start and End delimit its
// encoding, immediates included, within the decoded stream.
type Instruction struct {
	Op    *Operator
	Start int
	End   int
}

// DecodeError reports an instruction stream that could not be decoded.
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid instruction at offset %d: %s", e.Offset, e.Msg)
}

// Reader walks an instruction stream.
type Reader struct {
	r       *wasmbin.Reader
	stopped *Operator
}

func NewReader(code []byte) *Reader {
	return &Reader{r: wasmbin.NewReader(code)}
}

// More reports whether instructions remain.
func (r *Reader) More() bool {
	return !r.r.EOF()
}

// Next decodes the next instruction.
func (r *Reader) Next() (Instruction, error) {
	start := r.r.Pos()
	if r.stopped != nil {
		return Instruction{}, &DecodeError{Offset: start, Msg: "cannot decode past " + r.stopped.Name}
	}
	b, err := r.r.ReadByte()
	if err != nil {
		return Instruction{}, &DecodeError{Offset: start, Msg: err.Error()}
	}

	var op *Operator
	switch b {
	case PrefixGC, PrefixMisc, PrefixSIMD, PrefixThreads:
		code, err := r.r.ReadU32()
		if err != nil {
			return Instruction{}, &DecodeError{Offset: start, Msg: err.Error()}
		}
		op = Lookup(b, code)
		if op == nil {
			return Instruction{}, &DecodeError{Offset: start, Msg: fmt.Sprintf("unknown opcode 0x%02x 0x%02x", b, code)}
		}
	default:
		op = Lookup(0, uint32(b))
		if op == nil {
			return Instruction{}, &DecodeError{Offset: start, Msg: fmt.Sprintf("unknown opcode 0x%02x", b)}
		}
	}

	if err := r.skipImmediates(op); err != nil {
		return Instruction{}, &DecodeError{Offset: start, Msg: fmt.Sprintf("%s: %v", op.Name, err)}
	}
	return Instruction{Op: op, Start: start, End: r.r.Pos()}, nil
}

func (r *Reader) skipImmediates(op *Operator) error {
	rd := r.r
	var err error
	switch op.imm {
	case immNone:
	case immBlockType, immHeapType:
		_, err = rd.ReadS33()
	case immIndex:
		_, err = rd.ReadU32()
	case immTwoIndex:
		if _, err = rd.ReadU32(); err == nil {
			_, err = rd.ReadU32()
		}
	case immBrTable:
		var n uint32
		if n, err = rd.ReadU32(); err != nil {
			return err
		}
		// targets plus the default label
		for i := uint64(0); i <= uint64(n) && err == nil; i++ {
			_, err = rd.ReadU32()
		}
	case immMemArg:
		err = r.skipMemArg()
	case immMemArgLane:
		if err = r.skipMemArg(); err == nil {
			_, err = rd.ReadByte()
		}
	case immI32:
		_, err = rd.ReadS32()
	case immI64:
		_, err = rd.ReadS64()
	case immF32:
		err = rd.Skip(4)
	case immF64:
		err = rd.Skip(8)
	case immV128:
		err = rd.Skip(16)
	case immLane:
		_, err = rd.ReadByte()
	case immZeroByte:
		var b byte
		if b, err = rd.ReadByte(); err == nil && b != 0 {
			err = fmt.Errorf("expected zero byte, got 0x%02x", b)
		}
	case immSelectT:
		var n uint32
		if n, err = rd.ReadU32(); err != nil {
			return err
		}
		for i := uint32(0); i < n && err == nil; i++ {
			_, err = rd.ReadValueType()
		}
	case immTryTable:
		err = r.skipTryTable()
	case immUndecodable:
		r.stopped = op
	default:
		err = fmt.Errorf("unhandled immediate kind %d", op.imm)
	}
	return err
}

func (r *Reader) skipMemArg() error {
	align, err := r.r.ReadU32()
	if err != nil {
		return err
	}
	// bit 6 of the alignment announces an explicit memory index
	if align&0x40 != 0 {
		if _, err := r.r.ReadU32(); err != nil {
			return err
		}
	}
	_, err = r.r.ReadU64()
	return err
}

func (r *Reader) skipTryTable() error {
	if _, err := r.r.ReadS33(); err != nil {
		return err
	}
	n, err := r.r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		kind, err := r.r.ReadByte()
		if err != nil {
			return err
		}
		switch kind {
		case 0x00, 0x01: // catch, catch_ref: tag and label
			if _, err := r.r.ReadU32(); err != nil {
				return err
			}
		case 0x02, 0x03: // catch_all, catch_all_ref: label only
		default:
			return fmt.Errorf("unknown catch kind 0x%02x", kind)
		}
		if _, err := r.r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

// Decode returns every instruction of a function body.
func Decode(code []byte) ([]Instruction, error) {
	r := NewReader(code)
	var out []Instruction
	for r.More() {
		ins, err := r.Next()
		if err != nil {
			return out, err
		}
		out = append(out, ins)
	}
	return out, nil
}
