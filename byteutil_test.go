package aqua

import (
	"errors"
	"testing"
)

func TestBytesBuilder(t *testing.T) {
	var bb bytesBuilder
	_, _ = bb.Write([]byte{1, 2, 3})
	ensure(bb.WriteByte(4))
	bb.Buf = appendVarbytes(bb.Buf, []byte("hi"))
	deepEqual(t, bb.Buf, []byte{1, 2, 3, 4, 2, 'h', 'i'})
	if cap(bb.Buf) < 16 {
		t.Errorf("** cap = %d, wanted at least 16", cap(bb.Buf))
	}
}

func TestEnsureCapacity(t *testing.T) {
	buf := []byte{1, 2}
	grown := ensureCapacity(buf, 100)
	deepEqual(t, grown, []byte{1, 2})
	if cap(grown) < 100 {
		t.Fatalf("cap = %d, wanted >= 100", cap(grown))
	}
	same := ensureCapacity(grown, 10)
	if &same[0] != &grown[0] {
		t.Errorf("** ensureCapacity reallocated a large enough buffer")
	}
}

func TestByteDecoder(t *testing.T) {
	buf := appendVarbytes(nil, []byte("abc"))
	buf = appendVarbytes(buf, nil)
	buf = append(buf, 0xFF)

	d := makeByteDecoder(buf)
	deepEqual(t, must(d.VarBytes()), []byte("abc"))
	deepEqual(t, d.Off(), 4)
	deepEqual(t, len(must(d.VarBytes())), 0)

	_, err := d.Uvarint()
	var de *DataError
	if !errors.As(err, &de) || de.Off != 5 {
		t.Fatalf("Uvarint err = %#v, wanted *DataError at offset 5", err)
	}

	d = makeByteDecoder([]byte{5, 'a'})
	if _, err := d.VarBytes(); !errors.As(err, &de) {
		t.Fatalf("VarBytes(short) err = %v, wanted *DataError", err)
	}
}
