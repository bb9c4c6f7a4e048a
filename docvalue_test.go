package aqua

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
)

func TestDocValue_RoundTrip(t *testing.T) {
	body := []byte(`{"class":"Post"}`)
	raw := appendDocValue(nil, flagsFor(MsgPack), 3, body)

	var dv docValue
	ensure(dv.decode(raw))
	deepEqual(t, dv.Seq, uint64(3))
	deepEqual(t, dv.Data, body)
	deepEqual(t, dv.Flags.encoding(), MsgPack)
	deepEqual(t, dv.rev(), fmt.Sprintf("3-%016x", xxhash.Sum64(body)))

	ensure(dv.decode(appendDocValue(nil, flagsFor(JSON), 1, body)))
	deepEqual(t, dv.Flags.encoding(), JSON)
}

func TestDocValue_Invalid(t *testing.T) {
	body := []byte("0123456789")
	tests := []struct {
		name string
		raw  []byte
		msg  string
	}{
		{"short", []byte{1, 1}, "at least"},
		{"unknown flags", append([]byte{0x40, 1, 10}, body...), "unsupported flags"},
		{"version", append([]byte{0, 1, 10}, body...), "unsupported version"},
		{"zero sequence", append([]byte{1, 0, 10}, body...), "bad sequence"},
		{"truncated", appendDocValue(nil, dfVer1, 1, body)[:8], "expected 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dv docValue
			err := dv.decode(tt.raw)
			var de *DataError
			if !errors.As(err, &de) || !strings.Contains(err.Error(), tt.msg) {
				t.Fatalf("decode err = %v, wanted *DataError containing %q", err, tt.msg)
			}
		})
	}
}

func TestDocValue_RevChangesWithBody(t *testing.T) {
	a := formatRev(1, []byte("a"))
	b := formatRev(1, []byte("b"))
	c := formatRev(2, []byte("a"))
	if a == b || a == c {
		t.Fatalf("revs collide: %s %s %s", a, b, c)
	}
	if !strings.HasPrefix(c, "2-") || len(c) != 2+16 {
		t.Fatalf("rev = %q, wanted 2-<16 hex digits>", c)
	}
}
