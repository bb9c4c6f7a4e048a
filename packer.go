package aqua

import (
	"cmp"
	"fmt"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

type packer struct {
	reg     *Registry
	root    Object
	nilType *Type

	// identities of values whose fields are being packed
	packing map[any]bool
	// externals whose cached methods are being packed
	caching map[any]bool

	attachmentNames map[string]bool
	attachments     map[any]string
}

// Pack converts v into a packed tree. Objects referenced from v are packed
// inline or as external stubs depending on their type's policy; v itself is
// always packed inline.
func (reg *Registry) Pack(v any) (*Rat, error) {
	p := &packer{
		reg:             reg,
		nilType:         reg.TypeNamed("Nil"),
		packing:         make(map[any]bool),
		caching:         make(map[any]bool),
		attachmentNames: make(map[string]bool),
		attachments:     make(map[any]string),
	}
	if obj, ok := v.(Object); ok {
		p.root = obj
	}
	return p.pack(v, nil)
}

func (p *packer) pack(v any, path Path) (*Rat, error) {
	c, err := p.classify(v)
	if err != nil {
		if ce, ok := err.(*ClassificationError); ok && ce.Path == nil {
			ce.Path = path
		}
		return nil, err
	}
	switch c.strategy {
	case strategyPrimitive:
		return newRat(StringNode(c.value.(string))), nil
	case strategyTypedInit:
		return p.packTyped(c.value, c.typ, path)
	case strategyEmbedded, strategyPlain:
		return p.packPlain(c.value, c.typ, path)
	case strategyExternal:
		return p.packExternal(c.value.(Object), c.typ, path)
	case strategyStubbed:
		return p.packStubbed(c.stub), nil
	case strategyAttachment:
		return p.packAttachment(c.value.(Attachable), path)
	default:
		panic("unreachable")
	}
}

func (p *packer) packTyped(v any, typ *Type, path Path) (*Rat, error) {
	obj := typ.addressable(v)
	init, err := typ.initFn(obj)
	if err != nil {
		return nil, fmt.Errorf("%s at %v: %w", typ.name, path, err)
	}
	if obj != nil && reflect.TypeOf(obj).Kind() == reflect.Pointer {
		if err := p.enter(obj, path); err != nil {
			return nil, err
		}
		defer p.leave(obj)
	}

	initRat, err := p.packInit(init, path.Init())
	if err != nil {
		return nil, err
	}
	rat := newRat(TypedNode(typ.name, nil))
	rat.Hoard(InitStep(), initRat)
	if len(typ.fields) > 0 {
		if err := p.packFields(obj, typ, path, rat); err != nil {
			return nil, err
		}
	}
	return rat, nil
}

func (p *packer) packPlain(v any, typ *Type, path Path) (*Rat, error) {
	obj := typ.addressable(v)
	if err := p.enter(obj, path); err != nil {
		return nil, err
	}
	defer p.leave(obj)

	rat := newRat(PlainNode(typ.name))
	if err := p.packFields(obj, typ, path, rat); err != nil {
		return nil, err
	}
	return rat, nil
}

func (p *packer) packFields(obj any, typ *Type, path Path, rat *Rat) error {
	for _, f := range typ.fields {
		val := f.get(obj)
		if isNil(val) {
			continue
		}
		child, err := p.pack(val, path.Ivar(f.name))
		if err != nil {
			return err
		}
		rat.Hoard(IvarStep(f.name), child)
	}
	return nil
}

func (p *packer) packInit(init any, path Path) (*Rat, error) {
	if s, ok := init.(string); ok {
		return newRat(StringNode(s)), nil
	}
	rv := reflect.ValueOf(init)
	switch rv.Kind() {
	case reflect.String:
		return newRat(StringNode(rv.String())), nil
	case reflect.Slice, reflect.Array:
		return p.packList(rv, path)
	case reflect.Map:
		if err := p.enter(init, path); err != nil {
			return nil, err
		}
		defer p.leave(init)
		return p.packMap(rv, path)
	default:
		return nil, classificationErrf(init, path, "init payload must be a string, a slice or a map")
	}
}

func (p *packer) packList(rv reflect.Value, path Path) (*Rat, error) {
	n := rv.Len()
	rat := newRat(&Node{Kind: KindList, Items: make([]*Node, 0, n)})
	for i := range n {
		child, err := p.pack(rv.Index(i).Interface(), path.Index(i))
		if err != nil {
			return nil, err
		}
		rat.Hoard(IndexStep(i), child)
	}
	return rat, nil
}

type mapEntry struct {
	key reflect.Value
	str string
}

// packMap packs string keys directly, sorted. Other keys are packed into a
// list under "/OBJECT_KEYS" and their values stored under "/OBJECT_<n>", so
// string keys starting with "/OBJECT_" cannot share a map with them.
func (p *packer) packMap(rv reflect.Value, path Path) (*Rat, error) {
	var strs, objs []mapEntry
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		kv := k
		if kv.Kind() == reflect.Interface {
			kv = kv.Elem()
		}
		if kv.IsValid() && kv.Kind() == reflect.String {
			if kv.String() == objectKeysKey {
				return nil, classificationErrf(rv.Interface(), path, "map key %q is reserved", objectKeysKey)
			}
			strs = append(strs, mapEntry{k, kv.String()})
		} else {
			objs = append(objs, mapEntry{key: k, str: sortableKey(kv)})
		}
	}
	if len(objs) > 0 {
		for _, e := range strs {
			if strings.HasPrefix(e.str, objectKeyPrefix) {
				return nil, classificationErrf(rv.Interface(), path, "map key %q clashes with the %q keys of non-string keys", e.str, objectKeyPrefix)
			}
		}
	}
	slices.SortFunc(strs, func(a, b mapEntry) int { return cmp.Compare(a.str, b.str) })
	slices.SortStableFunc(objs, func(a, b mapEntry) int { return cmp.Compare(a.str, b.str) })

	rat := newRat(MapNode())
	for _, e := range strs {
		child, err := p.pack(rv.MapIndex(e.key).Interface(), path.Key(e.str))
		if err != nil {
			return nil, err
		}
		rat.Hoard(KeyStep(e.str), child)
	}
	if len(objs) == 0 {
		return rat, nil
	}

	keysPath := path.Key(objectKeysKey)
	keys := newRat(ListNode())
	for i, e := range objs {
		name := objectKeyPrefix + strconv.Itoa(i)
		child, err := p.pack(rv.MapIndex(e.key).Interface(), path.Key(name))
		if err != nil {
			return nil, err
		}
		rat.Hoard(KeyStep(name), child)

		keyRat, err := p.pack(e.key.Interface(), keysPath.Index(i))
		if err != nil {
			return nil, err
		}
		keys.Hoard(IndexStep(i), keyRat)
	}
	rat.Hoard(KeyStep(objectKeysKey), keys)
	return rat, nil
}

func sortableKey(kv reflect.Value) string {
	if !kv.IsValid() {
		return ""
	}
	return fmt.Sprintf("%v:%v", kv.Type(), kv.Interface())
}

func (p *packer) packExternal(obj Object, typ *Type, path Path) (*Rat, error) {
	rat := newRat(StubNode(typ.name, obj.AquaDoc().ID()))
	rat.addExternal(obj, path)
	if p.caching[obj] {
		return rat, nil
	}
	p.caching[obj] = true
	defer delete(p.caching, obj)

	for _, name := range typ.policy.methods {
		val, err := typ.Respond(obj, name)
		if err != nil {
			return nil, err
		}
		child, err := p.pack(val, path.Method(name))
		if err != nil {
			return nil, err
		}
		rat.Hoard(MethodStep(name), child)
	}
	return rat, nil
}

func (p *packer) packStubbed(s *Stub) *Rat {
	var n *Node
	if s.file {
		n = FileStubNode(s.id)
	} else {
		n = StubNode(s.class, s.id)
	}
	if s.nodes != nil {
		for pair := s.nodes.Oldest(); pair != nil; pair = pair.Next() {
			n.Methods.Set(pair.Key, pair.Value)
		}
	}
	return newRat(n)
}

func (p *packer) packAttachment(a Attachable, path Path) (*Rat, error) {
	data, contentType, err := readAttachable(a)
	if err != nil {
		return nil, fmt.Errorf("attachment at %v: %w", path, err)
	}
	var name string
	var seen bool
	if isIdentity(a) {
		name, seen = p.attachments[a]
	}
	if !seen {
		name = p.attachmentName(a.Name())
		if isIdentity(a) {
			p.attachments[a] = name
		}
	}

	rat := newRat(FileStubNode(name))
	rat.Hoard(MethodStep("content_type"), newRat(StringNode(contentType)))
	lenRat, err := p.pack(len(data), path.Method("content_length"))
	if err != nil {
		return nil, err
	}
	rat.Hoard(MethodStep("content_length"), lenRat)
	if !seen {
		rat.Attachments = append(rat.Attachments, &Attachment{Name: name, ContentType: contentType, Data: data})
	}
	return rat, nil
}

// attachmentName derives a unique attachment name from the base name of the
// file, suffixing -2, -3... on collisions.
func (p *packer) attachmentName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == "/" || base == "" {
		base = "attachment"
	}
	candidate := base
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 2; p.attachmentNames[candidate]; i++ {
		candidate = stem + "-" + strconv.Itoa(i) + ext
	}
	p.attachmentNames[candidate] = true
	return candidate
}

func (p *packer) enter(v any, path Path) error {
	if v == nil || !isIdentity(v) {
		return nil
	}
	key := identityOf(v)
	if p.packing[key] {
		return classificationErrf(v, path, "reference cycle through a value that is not a stored object")
	}
	p.packing[key] = true
	return nil
}

func (p *packer) leave(v any) {
	if v == nil || !isIdentity(v) {
		return
	}
	delete(p.packing, identityOf(v))
}

type mapIdentity uintptr

func isIdentity(v any) bool {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Pointer, reflect.Map:
		return true
	default:
		return false
	}
}

func identityOf(v any) any {
	if reflect.TypeOf(v).Kind() == reflect.Map {
		return mapIdentity(reflect.ValueOf(v).Pointer())
	}
	return v
}
