package wasmbin

import "encoding/binary"

func AppendU32(buf []byte, v uint32) []byte {
	return AppendU64(buf, uint64(v))
}

func AppendU64(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
			continue
		}
		return append(buf, b)
	}
}

func AppendS32(buf []byte, v int32) []byte {
	return AppendS64(buf, int64(v))
}

func AppendS64(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

func AppendName(buf []byte, name string) []byte {
	buf = AppendU32(buf, uint32(len(name)))
	return append(buf, name...)
}

// AppendSection appends a section header and its payload.
func AppendSection(buf []byte, id SectionID, payload []byte) []byte {
	buf = append(buf, byte(id))
	buf = AppendU32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// Header returns the magic and version preamble.
func Header() []byte {
	buf := []byte(Magic)
	return binary.LittleEndian.AppendUint32(buf, Version)
}

// Assemble writes sections in the given order, inserting each of extra at
// the position required by the section ordering.
func Assemble(sections []Section, extra ...Section) []byte {
	out := Header()
	pending := extra
	emitPending := func(before int) {
		kept := pending[:0:0]
		for _, s := range pending {
			if before == 0 || s.ID.rank() < before {
				out = AppendSection(out, s.ID, s.Payload)
			} else {
				kept = append(kept, s)
			}
		}
		pending = kept
	}
	for _, s := range sections {
		if s.ID != SectionCustom {
			emitPending(s.ID.rank())
		}
		out = AppendSection(out, s.ID, s.Payload)
	}
	emitPending(0)
	return out
}
