package aqua

import (
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// UnpackContext configures an unpack. Base is the document that owns
// attachments referenced from the tree; when nil, the first Object created
// for the root node is used and gets ID as its id. Loader is handed to the
// stubs created along the way. Path is the location of the node within its
// document.
type UnpackContext struct {
	Base   Object
	ID     string
	Loader Loader
	Path   Path
}

// identityMap is implemented by loaders that hand out one object per
// document, so cycles between documents unpack without loading forever.
type identityMap interface {
	remember(class, id string, obj Object)
}

type unpacker struct {
	reg    *Registry
	base   Object
	id     string
	loader Loader
	root   Path

	// set while the init payload of the root node is unpacked, so nothing
	// inside it is adopted in place of the root
	holding bool
	// file stubs created before the base was known
	orphans []*Stub
}

// Unpack rebuilds a value from its packed tree. External references become
// *Stub values, or *Ref[T] when assigned to fields of that type. Unknown
// classes fail the whole unpack.
func (reg *Registry) Unpack(n *Node, ctx UnpackContext) (any, error) {
	u := &unpacker{
		reg:    reg,
		base:   ctx.Base,
		id:     ctx.ID,
		loader: ctx.Loader,
		root:   ctx.Path,
	}
	return u.unpack(n, ctx.Path, nil)
}

func (u *unpacker) unpack(n *Node, path Path, parent any) (any, error) {
	if n == nil {
		return nil, dataErrf(nil, 0, nil, "missing node at %v", path)
	}
	switch n.Kind {
	case KindString:
		return n.Str, nil
	case KindList, KindMap:
		return u.unpackInit(n, path)
	case KindTyped:
		return u.unpackTyped(n, path)
	case KindPlain:
		return u.unpackPlain(n, path)
	case KindStub, KindFileStub:
		return u.unpackStub(n, path, parent)
	default:
		return nil, dataErrf(nil, 0, nil, "invalid node kind %v at %v", n.Kind, path)
	}
}

func (u *unpacker) resolve(class string, path Path) (*Type, error) {
	typ, err := u.reg.Resolve(class)
	if err != nil {
		if ue, ok := err.(*UnknownTypeError); ok {
			ue.Path = path
		}
		return nil, err
	}
	return typ, nil
}

func (u *unpacker) unpackTyped(n *Node, path Path) (any, error) {
	typ, err := u.resolve(n.Class, path)
	if err != nil {
		return nil, err
	}
	if n.Init == nil {
		return nil, &UnknownTypeError{Class: n.Class, Path: path, Err: ErrMissingInit}
	}
	atRoot := typ.isObject && u.base == nil && !u.holding && path.Equal(u.root)
	if atRoot {
		u.holding = true
	}
	init, err := u.unpackInit(n.Init, path.Init())
	if atRoot {
		u.holding = false
	}
	if err != nil {
		return nil, err
	}
	if typ.fromStored != nil {
		return typ.fromStored(init)
	}
	if typ.fromInitFn == nil {
		return nil, &UnknownTypeError{Class: n.Class, Path: path, Err: ErrMissingInit}
	}
	v, err := typ.fromInitFn(init)
	if err != nil {
		return nil, fmt.Errorf("%s at %v: %w", typ.name, path, err)
	}
	if atRoot || fieldsLen(n.Ivars) > 0 {
		u.adopt(v)
	}
	if fieldsLen(n.Ivars) > 0 {
		if err := u.setIvars(v, typ, n.Ivars, path); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (u *unpacker) unpackPlain(n *Node, path Path) (any, error) {
	typ, err := u.resolve(n.Class, path)
	if err != nil {
		return nil, err
	}
	if typ.fromStored != nil {
		return typ.fromStored(nil)
	}
	if typ.newFn == nil {
		return nil, &UnknownTypeError{Class: n.Class, Path: path, Err: ErrMissingInit}
	}
	obj := typ.newFn()
	u.adopt(obj)
	if n.Ivars != nil {
		if err := u.setIvars(obj, typ, n.Ivars, path); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// adopt makes the first object built the owner of attachments found in the
// tree. The root node wins over objects inside its own init payload.
func (u *unpacker) adopt(v any) {
	if u.base != nil || u.holding {
		return
	}
	obj, ok := v.(Object)
	if !ok {
		return
	}
	u.base = obj
	for _, s := range u.orphans {
		s.owner = obj
	}
	u.orphans = nil
	if u.id == "" {
		return
	}
	obj.AquaDoc().id = u.id
	if m, ok := u.loader.(identityMap); ok {
		if typ := u.reg.TypeOf(obj); typ != nil {
			m.remember(typ.name, u.id, obj)
		}
	}
}

// setIvars assigns stored fields in stored order. Fields the type no longer
// declares are skipped.
func (u *unpacker) setIvars(obj any, typ *Type, ivars *Fields, path Path) error {
	for pair := ivars.Oldest(); pair != nil; pair = pair.Next() {
		f := typ.fieldsByName[pair.Key]
		if f == nil {
			continue
		}
		fpath := path.Ivar(pair.Key)
		v, err := u.unpack(pair.Value, fpath, obj)
		if err != nil {
			return err
		}
		if err := f.set(obj, v); err != nil {
			return fmt.Errorf("%s%v: %w", typ.name, fpath, err)
		}
	}
	return nil
}

func (u *unpacker) unpackInit(n *Node, path Path) (any, error) {
	switch n.Kind {
	case KindString:
		return n.Str, nil
	case KindList:
		items := make([]any, len(n.Items))
		for i, item := range n.Items {
			v, err := u.unpack(item, path.Index(i), nil)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case KindMap:
		return u.unpackMap(n, path)
	default:
		return u.unpack(n, path, nil)
	}
}

func (u *unpacker) unpackMap(n *Node, path Path) (any, error) {
	keysNode := n.Entry(objectKeysKey)
	if keysNode == nil {
		m := make(map[string]any, fieldsLen(n.Entries))
		for pair := n.Entries.Oldest(); pair != nil; pair = pair.Next() {
			v, err := u.unpack(pair.Value, path.Key(pair.Key), nil)
			if err != nil {
				return nil, err
			}
			m[pair.Key] = v
		}
		return m, nil
	}

	if keysNode.Kind != KindList {
		return nil, dataErrf(nil, 0, nil, "%v%v is %v, wanted a list", path, KeyStep(objectKeysKey), keysNode.Kind)
	}
	keys := make([]any, len(keysNode.Items))
	keysPath := path.Key(objectKeysKey)
	for i, kn := range keysNode.Items {
		k, err := u.unpack(kn, keysPath.Index(i), nil)
		if err != nil {
			return nil, err
		}
		if !isComparable(k) {
			return nil, dataErrf(nil, 0, nil, "map key at %v is %T, which cannot be a map key", keysPath.Index(i), k)
		}
		keys[i] = k
	}

	m := make(map[any]any, fieldsLen(n.Entries))
	for pair := n.Entries.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == objectKeysKey {
			continue
		}
		v, err := u.unpack(pair.Value, path.Key(pair.Key), nil)
		if err != nil {
			return nil, err
		}
		if idx, ok := strings.CutPrefix(pair.Key, objectKeyPrefix); ok {
			i, err := strconv.Atoi(idx)
			if err != nil || i < 0 || i >= len(keys) {
				return nil, dataErrf(nil, 0, err, "invalid object key reference %q at %v", pair.Key, path)
			}
			m[keys[i]] = v
		} else {
			m[pair.Key] = v
		}
	}
	return m, nil
}

func (u *unpacker) unpackStub(n *Node, path Path, parent any) (any, error) {
	s := &Stub{
		class:  n.Class,
		id:     n.ID,
		file:   n.Kind == KindFileStub,
		parent: parent,
		path:   path,
		loader: u.loader,
		reg:    u.reg,
		cached: orderedmap.New[string, any](),
		nodes:  n.Methods,
	}
	if s.file {
		s.owner = u.base
		if s.owner == nil {
			u.orphans = append(u.orphans, s)
		}
	}
	if n.Methods != nil {
		for pair := n.Methods.Oldest(); pair != nil; pair = pair.Next() {
			v, err := u.unpack(pair.Value, path.Method(pair.Key), s)
			if err != nil {
				return nil, err
			}
			s.cached.Set(pair.Key, v)
		}
	}
	return s, nil
}
