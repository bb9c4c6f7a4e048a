package aqua

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects how document bodies are stored. Both encodings preserve
// the packed tree exactly; JSON is the wire format exchanged with callers.
type Encoding int

const (
	JSON Encoding = iota
	MsgPack

	defaultEncoding = JSON
)

func (enc Encoding) String() string {
	switch enc {
	case JSON:
		return "json"
	case MsgPack:
		return "msgpack"
	default:
		return fmt.Sprintf("encoding(%d)", int(enc))
	}
}

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", s)
	}
}

func (enc Encoding) EncodeNode(buf []byte, n *Node) []byte {
	switch enc {
	case MsgPack:
		bb := bytesBuilder{buf}
		me := msgpack.GetEncoder()
		me.Reset(&bb)
		err := encodeNodeMsgpack(me, n)
		msgpack.PutEncoder(me)
		if err != nil {
			panic(fmt.Errorf("failed to encode %s node using MsgPack: %w", n.Class, err))
		}
		return bb.Buf
	case JSON:
		buf, err := n.appendJSON(buf)
		if err != nil {
			panic(fmt.Errorf("failed to encode %s node to JSON: %w", n.Class, err))
		}
		return buf
	default:
		panic("unsupported encoding")
	}
}

func (enc Encoding) DecodeNode(data []byte) (*Node, error) {
	switch enc {
	case MsgPack:
		md := msgpack.GetDecoder()
		md.Reset(bytes.NewReader(data))
		n, err := decodeNodeMsgpack(md)
		msgpack.PutDecoder(md)
		if err != nil {
			return nil, dataErrf(data, 0, err, "failed to decode msgpack node")
		}
		return n, nil
	case JSON:
		return decodeNodeJSON(data)
	default:
		panic("unsupported encoding")
	}
}

var (
	_ msgpack.CustomEncoder = (*Node)(nil)
	_ msgpack.CustomDecoder = (*Node)(nil)
)

func (n *Node) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeNodeMsgpack(enc, n)
}

func (n *Node) DecodeMsgpack(dec *msgpack.Decoder) error {
	dn, err := decodeNodeMsgpack(dec)
	if err != nil {
		return err
	}
	*n = *dn
	return nil
}

// A node is a msgpack array whose first element is its Kind:
//
//	[string, str]
//	[list, [item...]]
//	[map, fields]
//	[typed, class, init, fields|nil]
//	[plain, class, fields|nil]
//	[stub, class, id, fields]
//	[filestub, name, fields]
//
// where fields is a flat [key, node, key, node...] array.
func encodeNodeMsgpack(enc *msgpack.Encoder, n *Node) error {
	if n == nil {
		return fmt.Errorf("cannot encode nil node")
	}
	var err error
	switch n.Kind {
	case KindString:
		err = encodeAll(enc, 2, n.Kind, func() error { return enc.EncodeString(n.Str) })
	case KindList:
		err = encodeAll(enc, 2, n.Kind, func() error {
			if err := enc.EncodeArrayLen(len(n.Items)); err != nil {
				return err
			}
			for _, item := range n.Items {
				if err := encodeNodeMsgpack(enc, item); err != nil {
					return err
				}
			}
			return nil
		})
	case KindMap:
		err = encodeAll(enc, 2, n.Kind, func() error { return encodeFieldsMsgpack(enc, n.Entries) })
	case KindTyped:
		err = encodeAll(enc, 4, n.Kind,
			func() error { return enc.EncodeString(n.Class) },
			func() error { return encodeNodeMsgpack(enc, n.Init) },
			func() error { return encodeFieldsMsgpack(enc, n.Ivars) })
	case KindPlain:
		err = encodeAll(enc, 3, n.Kind,
			func() error { return enc.EncodeString(n.Class) },
			func() error { return encodeFieldsMsgpack(enc, n.Ivars) })
	case KindStub:
		err = encodeAll(enc, 4, n.Kind,
			func() error { return enc.EncodeString(n.Class) },
			func() error { return enc.EncodeString(n.ID) },
			func() error { return encodeFieldsMsgpack(enc, n.Methods) })
	case KindFileStub:
		err = encodeAll(enc, 3, n.Kind,
			func() error { return enc.EncodeString(n.ID) },
			func() error { return encodeFieldsMsgpack(enc, n.Methods) })
	default:
		return fmt.Errorf("cannot encode node of %v", n.Kind)
	}
	return err
}

func encodeAll(enc *msgpack.Encoder, arrayLen int, kind Kind, parts ...func() error) error {
	if err := enc.EncodeArrayLen(arrayLen); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(kind)); err != nil {
		return err
	}
	for _, f := range parts {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

func encodeFieldsMsgpack(enc *msgpack.Encoder, fields *Fields) error {
	if fieldsLen(fields) == 0 {
		return enc.EncodeNil()
	}
	if err := enc.EncodeArrayLen(2 * fields.Len()); err != nil {
		return err
	}
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		if err := enc.EncodeString(pair.Key); err != nil {
			return err
		}
		if err := encodeNodeMsgpack(enc, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

func decodeNodeMsgpack(dec *msgpack.Decoder) (*Node, error) {
	l, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if l < 2 {
		return nil, fmt.Errorf("node array too short: %d", l)
	}
	k, err := dec.DecodeInt()
	if err != nil {
		return nil, err
	}
	kind := Kind(k)
	want := map[Kind]int{KindString: 2, KindList: 2, KindMap: 2, KindTyped: 4, KindPlain: 3, KindStub: 4, KindFileStub: 3}[kind]
	if want == 0 {
		return nil, fmt.Errorf("invalid node kind %d", k)
	}
	if l != want {
		return nil, fmt.Errorf("%v node has %d elements, wanted %d", kind, l, want)
	}

	n := &Node{Kind: kind}
	switch kind {
	case KindString:
		n.Str, err = dec.DecodeString()
	case KindList:
		var count int
		count, err = dec.DecodeArrayLen()
		if err == nil && count > 0 {
			n.Items = make([]*Node, count)
			for i := range count {
				if n.Items[i], err = decodeNodeMsgpack(dec); err != nil {
					break
				}
			}
		}
	case KindMap:
		n.Entries, err = decodeFieldsMsgpack(dec)
		if err == nil && n.Entries == nil {
			n.Entries = newFields()
		}
	case KindTyped:
		if n.Class, err = dec.DecodeString(); err != nil {
			break
		}
		if n.Init, err = decodeNodeMsgpack(dec); err != nil {
			break
		}
		n.Ivars, err = decodeFieldsMsgpack(dec)
	case KindPlain:
		if n.Class, err = dec.DecodeString(); err != nil {
			break
		}
		n.Ivars, err = decodeFieldsMsgpack(dec)
	case KindStub:
		if n.Class, err = dec.DecodeString(); err != nil {
			break
		}
		if n.ID, err = dec.DecodeString(); err != nil {
			break
		}
		n.Methods, err = decodeFieldsMsgpack(dec)
	case KindFileStub:
		if n.ID, err = dec.DecodeString(); err != nil {
			break
		}
		n.Methods, err = decodeFieldsMsgpack(dec)
	}
	if err != nil {
		return nil, err
	}
	if (kind == KindStub || kind == KindFileStub) && n.Methods == nil {
		n.Methods = newFields()
	}
	return n, nil
}

func decodeFieldsMsgpack(dec *msgpack.Decoder) (*Fields, error) {
	l, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if l < 0 {
		return nil, nil
	}
	if l%2 != 0 {
		return nil, fmt.Errorf("odd fields array length %d", l)
	}
	fields := newFields()
	for range l / 2 {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		child, err := decodeNodeMsgpack(dec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		fields.Set(key, child)
	}
	return fields, nil
}
