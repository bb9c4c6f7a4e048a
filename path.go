package aqua

import (
	"strconv"
	"strings"
)

type stepKind uint8

const (
	stepIvar stepKind = iota
	stepInit
	stepIndex
	stepKey
	stepMethod
)

// PathStep is one hop from a node to one of its children.
type PathStep struct {
	kind  stepKind
	name  string
	index int
}

func IvarStep(name string) PathStep   { return PathStep{kind: stepIvar, name: name} }
func InitStep() PathStep              { return PathStep{kind: stepInit} }
func IndexStep(i int) PathStep        { return PathStep{kind: stepIndex, index: i} }
func KeyStep(key string) PathStep     { return PathStep{kind: stepKey, name: key} }
func MethodStep(name string) PathStep { return PathStep{kind: stepMethod, name: name} }

func (s PathStep) String() string {
	switch s.kind {
	case stepIvar:
		return ".ivars." + s.name
	case stepInit:
		return ".init"
	case stepIndex:
		return "[" + strconv.Itoa(s.index) + "]"
	case stepKey:
		return "[" + strconv.Quote(s.name) + "]"
	case stepMethod:
		return ".methods." + s.name
	default:
		return ".?"
	}
}

// Path locates a node relative to the root of a packed tree. Paths are
// immutable; the builder methods return extended copies.
type Path []PathStep

func (p Path) With(step PathStep) Path {
	r := make(Path, len(p)+1)
	copy(r, p)
	r[len(p)] = step
	return r
}

func (p Path) Ivar(name string) Path   { return p.With(IvarStep(name)) }
func (p Path) Init() Path              { return p.With(InitStep()) }
func (p Path) Index(i int) Path        { return p.With(IndexStep(i)) }
func (p Path) Key(key string) Path     { return p.With(KeyStep(key)) }
func (p Path) Method(name string) Path { return p.With(MethodStep(name)) }

func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	if len(p) == 0 {
		return "."
	}
	var buf strings.Builder
	for _, s := range p {
		buf.WriteString(s.String())
	}
	return buf.String()
}
