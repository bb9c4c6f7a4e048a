package aqua

import (
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind tags the variant a Node holds.
type Kind uint8

const (
	KindString Kind = iota
	KindList
	KindMap
	KindTyped
	KindPlain
	KindStub
	KindFileStub
)

var kindNames = [...]string{"string", "list", "map", "typed", "plain", "stub", "filestub"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

const (
	stubClass     = "Stub"
	fileStubClass = "FileStub"

	objectKeysKey   = "/OBJECT_KEYS"
	objectKeyPrefix = "/OBJECT_"
)

// Fields is an insertion-ordered map of named child nodes, used for ivars,
// cached methods and map payloads.
type Fields = orderedmap.OrderedMap[string, *Node]

func newFields() *Fields {
	return orderedmap.New[string, *Node]()
}

// Node is one node of a packed document tree.
//
// KindString nodes carry Str. KindTyped nodes carry Class, Init and optional
// Ivars. KindPlain nodes carry Class and optional Ivars. KindStub nodes carry
// Class (of the referenced document), ID and Methods. KindFileStub nodes carry
// the attachment name in ID, and Methods. KindList and KindMap only occur
// inside init payloads and carry Items and Entries respectively.
type Node struct {
	Kind    Kind
	Class   string
	Str     string
	ID      string
	Init    *Node
	Ivars   *Fields
	Methods *Fields
	Items   []*Node
	Entries *Fields
}

func StringNode(s string) *Node {
	return &Node{Kind: KindString, Str: s}
}

func ListNode(items ...*Node) *Node {
	return &Node{Kind: KindList, Items: items}
}

func MapNode() *Node {
	return &Node{Kind: KindMap, Entries: newFields()}
}

func TypedNode(class string, init *Node) *Node {
	return &Node{Kind: KindTyped, Class: class, Init: init}
}

func PlainNode(class string) *Node {
	return &Node{Kind: KindPlain, Class: class}
}

func StubNode(class, id string) *Node {
	return &Node{Kind: KindStub, Class: class, ID: id, Methods: newFields()}
}

func FileStubNode(name string) *Node {
	return &Node{Kind: KindFileStub, ID: name, Methods: newFields()}
}

func (n *Node) Ivar(name string) *Node {
	if n.Ivars == nil {
		return nil
	}
	v, _ := n.Ivars.Get(name)
	return v
}

func (n *Node) Method(name string) *Node {
	if n.Methods == nil {
		return nil
	}
	v, _ := n.Methods.Get(name)
	return v
}

func (n *Node) Entry(key string) *Node {
	if n.Entries == nil {
		return nil
	}
	v, _ := n.Entries.Get(key)
	return v
}

func (n *Node) setIvar(name string, child *Node) {
	if n.Ivars == nil {
		n.Ivars = newFields()
	}
	n.Ivars.Set(name, child)
}

// At returns the node reached by following path from n.
func (n *Node) At(path Path) (*Node, error) {
	cur := n
	for i, step := range path {
		next := cur.child(step)
		if next == nil {
			return nil, fmt.Errorf("no node at %v (missing %v)", path, path[:i+1])
		}
		cur = next
	}
	return cur, nil
}

func (n *Node) child(step PathStep) *Node {
	switch step.kind {
	case stepIvar:
		return n.Ivar(step.name)
	case stepInit:
		return n.Init
	case stepIndex:
		if step.index >= 0 && step.index < len(n.Items) {
			return n.Items[step.index]
		}
		return nil
	case stepKey:
		return n.Entry(step.name)
	case stepMethod:
		return n.Method(step.name)
	default:
		panic("unreachable")
	}
}

func (n *Node) insert(step PathStep, child *Node) {
	switch step.kind {
	case stepIvar:
		n.setIvar(step.name, child)
	case stepInit:
		n.Init = child
	case stepIndex:
		if step.index != len(n.Items) {
			panic(fmt.Errorf("out-of-order list insert at %d, have %d items", step.index, len(n.Items)))
		}
		n.Items = append(n.Items, child)
	case stepKey:
		if n.Entries == nil {
			n.Entries = newFields()
		}
		n.Entries.Set(step.name, child)
	case stepMethod:
		if n.Methods == nil {
			n.Methods = newFields()
		}
		n.Methods.Set(step.name, child)
	default:
		panic("unreachable")
	}
}

// PatchID sets the document id of the stub found at path.
func (n *Node) PatchID(path Path, id string) error {
	target, err := n.At(path)
	if err != nil {
		return err
	}
	if target.Kind != KindStub {
		return fmt.Errorf("node at %v is %v, not a stub", path, target.Kind)
	}
	target.ID = id
	return nil
}

// Equal reports whether two trees are structurally identical, including the
// order of fields.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Kind != o.Kind || n.Class != o.Class || n.Str != o.Str || n.ID != o.ID {
		return false
	}
	if !n.Init.Equal(o.Init) {
		return false
	}
	if len(n.Items) != len(o.Items) {
		return false
	}
	for i := range n.Items {
		if !n.Items[i].Equal(o.Items[i]) {
			return false
		}
	}
	return fieldsEqual(n.Ivars, o.Ivars) && fieldsEqual(n.Methods, o.Methods) && fieldsEqual(n.Entries, o.Entries)
}

func fieldsEqual(a, b *Fields) bool {
	if fieldsLen(a) != fieldsLen(b) {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	pb := b.Oldest()
	for pa := a.Oldest(); pa != nil; pa = pa.Next() {
		if pa.Key != pb.Key || !pa.Value.Equal(pb.Value) {
			return false
		}
		pb = pb.Next()
	}
	return true
}

func fieldsLen(f *Fields) int {
	if f == nil {
		return 0
	}
	return f.Len()
}

func (n *Node) String() string {
	raw, err := n.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid node: %v>", err)
	}
	return string(raw)
}
