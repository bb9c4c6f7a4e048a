package aqua

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

type docFlags uint64

const (
	dfVerBit0 = docFlags(1 << iota)
	dfVerBit1
	dfMsgPack

	dfVerMask       = dfVerBit0 | dfVerBit1
	dfVer1          = dfVerBit0
	dfSupportedMask = dfVer1 | dfMsgPack

	minDocValueSize = 4
)

func (df docFlags) encoding() Encoding {
	if df&dfMsgPack != 0 {
		return MsgPack
	}
	return JSON
}

func flagsFor(enc Encoding) docFlags {
	if enc == MsgPack {
		return dfVer1 | dfMsgPack
	}
	return dfVer1
}

// docValue is the stored form of a document: a uvarint header (flags, update
// sequence, body size) followed by the encoded body.
type docValue struct {
	Flags docFlags
	Seq   uint64
	Data  []byte
}

func appendDocValue(buf []byte, flags docFlags, seq uint64, data []byte) []byte {
	if (flags &^ dfSupportedMask) != 0 {
		panic(fmt.Errorf("invalid flags %x", flags))
	}
	buf = binary.AppendUvarint(buf, uint64(flags))
	buf = binary.AppendUvarint(buf, seq)
	buf = binary.AppendUvarint(buf, uint64(len(data)))
	return appendRaw(buf, data)
}

// rev formats the document revision: the update sequence and a hash of the
// body, like "3-9f86d081884c7d65".
func (dv *docValue) rev() string {
	return formatRev(dv.Seq, dv.Data)
}

func formatRev(seq uint64, data []byte) string {
	return fmt.Sprintf("%d-%016x", seq, xxhash.Sum64(data))
}

func (dv *docValue) decode(data []byte) error {
	orig := data
	if len(data) < minDocValueSize {
		return dataErrf(orig, 0, nil, "invalid document: at least %d bytes required", minDocValueSize)
	}

	v, n := binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, 0, nil, "invalid document: bad flags")
	}
	if (v &^ uint64(dfSupportedMask)) != 0 {
		return dataErrf(orig, 0, nil, "invalid document: unsupported flags %x", v)
	}
	if docFlags(v)&dfVerMask != dfVer1 {
		return dataErrf(orig, 0, nil, "invalid document: unsupported version %d", docFlags(v)&dfVerMask)
	}
	dv.Flags, data = docFlags(v), data[n:]

	v, n = binary.Uvarint(data)
	if n <= 0 || v == 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid document: bad sequence")
	}
	dv.Seq, data = v, data[n:]

	size, n := binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid document: bad body size")
	}
	data = data[n:]
	if uint64(len(data)) != size {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid document: got %d bytes of body, expected %d", len(data), size)
	}
	dv.Data = data
	return nil
}
