package aqua

import (
	"errors"
	"strings"
	"testing"
)

func sampleTree() *Node {
	meta := MapNode()
	meta.Entries.Set("b", TypedNode("Int", StringNode("2")))
	meta.Entries.Set("a", StringNode("x"))

	author := StubNode("User", "u1")
	author.Methods.Set("username", StringNode("kane"))

	cover := FileStubNode("cover.png")
	cover.Methods.Set("content_type", StringNode("image/png"))

	n := PlainNode("Post")
	n.setIvar("title", StringNode("héllo \"world\""))
	n.setIvar("tags", TypedNode("Array", ListNode(StringNode("a"), TypedNode("Nil", StringNode("")))))
	n.setIvar("meta", TypedNode("Hash", meta))
	n.setIvar("author", author)
	n.setIvar("cover", cover)
	n.setIvar("empty", TypedNode("Array", ListNode()))
	n.setIvar("point", PlainNode("Point"))
	return n
}

func TestNode_JSON(t *testing.T) {
	n := sampleTree()
	raw := string(must(n.MarshalJSON()))
	deepEqual(t, raw, `{"class":"Post","ivars":{`+
		`"title":"héllo \"world\"",`+
		`"tags":{"class":"Array","init":["a",{"class":"Nil","init":""}]},`+
		`"meta":{"class":"Hash","init":{"b":{"class":"Int","init":"2"},"a":"x"}},`+
		`"author":{"class":"Stub","init":{"class":"User","id":"u1","methods":{"username":"kane"}}},`+
		`"cover":{"class":"FileStub","init":{"id":"cover.png","methods":{"content_type":"image/png"}}},`+
		`"empty":{"class":"Array","init":[]},`+
		`"point":{"class":"Point"}}}`)

	back := must(ParseNode([]byte(raw)))
	if !back.Equal(n) {
		t.Fatalf("ParseNode(MarshalJSON) = %v, wanted %v", back, n)
	}
	deepEqual(t, back.String(), raw)
}

func TestNode_MsgPack(t *testing.T) {
	n := sampleTree()
	data := MsgPack.EncodeNode(nil, n)
	back := must(MsgPack.DecodeNode(data))
	if !back.Equal(n) {
		t.Fatalf("msgpack round trip = %v, wanted %v", back, n)
	}

	_, err := MsgPack.DecodeNode(data[:len(data)/2])
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("DecodeNode(truncated) err = %v, wanted *DataError", err)
	}
}

func TestNode_ParseErrors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{``, "empty node"},
		{`42`, "unexpected JSON value"},
		{`{"ivars":{}}`, "no class"},
		{`{"class":"Post","extra":1}`, `unexpected key "extra"`},
		{`{"class":"Stub"}`, "stub has no init"},
		{`{"class":"Stub","init":{"id":"x","methods":{}}}`, "stub has no class"},
		{`{"class":"Post","ivars":{"title":7}}`, "title"},
		{`{"class":"Array","init":[1]}`, "[0]"},
		{`{"class":"Post"`, "unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseNode([]byte(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.msg) {
				t.Fatalf("ParseNode(%s) err = %v, wanted error containing %q", tt.input, err, tt.msg)
			}
		})
	}
}

func TestNode_AtAndPatchID(t *testing.T) {
	n := sampleTree()
	deepEqual(t, must(n.At(Path{}.Ivar("tags").Init().Index(0))).Str, "a")
	deepEqual(t, must(n.At(Path{}.Ivar("meta").Init().Key("a"))).Str, "x")
	deepEqual(t, must(n.At(Path{}.Ivar("author").Method("username"))).Str, "kane")

	_, err := n.At(Path{}.Ivar("tags").Init().Index(5))
	if err == nil {
		t.Fatalf("At(out of range) err = nil")
	}

	ensure(n.PatchID(Path{}.Ivar("author"), "u2"))
	deepEqual(t, n.Ivar("author").ID, "u2")
	if err := n.PatchID(Path{}.Ivar("title"), "u3"); err == nil {
		t.Fatalf("PatchID(string) err = nil, wanted error")
	}
}

func TestNode_Equal(t *testing.T) {
	a, b := sampleTree(), sampleTree()
	if !a.Equal(b) {
		t.Fatalf("identical trees are not Equal")
	}
	b.Ivar("meta").Init.Entries.Set("c", StringNode("y"))
	if a.Equal(b) {
		t.Fatalf("trees with different entries are Equal")
	}

	x := MapNode()
	x.Entries.Set("a", StringNode("1"))
	x.Entries.Set("b", StringNode("2"))
	y := MapNode()
	y.Entries.Set("b", StringNode("2"))
	y.Entries.Set("a", StringNode("1"))
	if x.Equal(y) {
		t.Fatalf("entries in a different order are Equal")
	}
}

func TestPath_String(t *testing.T) {
	deepEqual(t, Path{}.String(), ".")
	p := Path{}.Ivar("meta").Init().Key("a b").Index(3).Method("name")
	deepEqual(t, p.String(), `.ivars.meta.init["a b"][3].methods.name`)
	q := Path{}.Ivar("meta")
	r := q.Init()
	s := q.Ivar("other")
	deepEqual(t, r.String(), ".ivars.meta.init")
	deepEqual(t, s.String(), ".ivars.meta.ivars.other")
	deepEqual(t, r.Equal(Path{}.Ivar("meta").Init()), true)
	deepEqual(t, r.Equal(s), false)
}
