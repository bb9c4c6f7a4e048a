package aqua

import (
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Loader fetches the delegates of stubs.
type Loader interface {
	Load(class, id string) (any, error)
	Attachment(owner Object, name string) (*File, error)
}

// Stub stands in for an external document or an attachment until something
// outside its cached methods is needed. The first such access loads the
// delegate; the result is kept for the life of the stub.
type Stub struct {
	class  string
	id     string
	file   bool
	owner  Object
	parent any
	path   Path
	loader Loader
	reg    *Registry

	cached *orderedmap.OrderedMap[string, any]
	nodes  *Fields

	mu       sync.Mutex
	resolved bool
	delegate any
}

var _ Responder = (*Stub)(nil)

func (s *Stub) Class() string { return s.class }
func (s *Stub) ID() string    { return s.id }
func (s *Stub) IsFile() bool  { return s.file }
func (s *Stub) Path() Path    { return s.path }
func (s *Stub) Parent() any   { return s.parent }

func (s *Stub) String() string {
	if s.file {
		return fmt.Sprintf("FileStub(%s)", s.id)
	}
	return fmt.Sprintf("Stub(%s/%s)", s.class, s.id)
}

// Cached returns the cached value of name without resolving.
func (s *Stub) Cached(name string) (any, bool) {
	return s.cached.Get(name)
}

// CachedNames lists the cached methods in stored order.
func (s *Stub) CachedNames() []string {
	names := make([]string, 0, s.cached.Len())
	for pair := s.cached.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

func (s *Stub) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Respond answers name from the cache, or resolves the stub and forwards.
func (s *Stub) Respond(name string) (any, error) {
	if v, ok := s.cached.Get(name); ok {
		return v, nil
	}
	d, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	if f, ok := d.(*File); ok {
		return f.respond(name)
	}
	typ := s.reg.TypeOf(d)
	if typ == nil {
		return nil, unknownCapabilityErrf(fmt.Sprintf("%T", d), name)
	}
	return typ.Respond(d, name)
}

// Resolve loads the delegate on first call and returns it. Failures are
// returned as *ResolutionError and are not cached.
func (s *Stub) Resolve() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.delegate, nil
	}
	if s.loader == nil {
		return nil, &ResolutionError{s.class, s.id, fmt.Errorf("no loader")}
	}
	var d any
	var err error
	if s.file {
		if s.owner == nil {
			return nil, &ResolutionError{fileStubClass, s.id, fmt.Errorf("no owning document")}
		}
		d, err = s.loader.Attachment(s.owner, s.id)
	} else {
		d, err = s.loader.Load(s.class, s.id)
	}
	if err != nil {
		class := s.class
		if s.file {
			class = fileStubClass
		}
		return nil, &ResolutionError{class, s.id, err}
	}
	s.delegate = d
	s.resolved = true
	return d, nil
}

// delegateIfResolved returns the loaded delegate without triggering a load.
func (s *Stub) delegateIfResolved() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delegate, s.resolved
}

// Ref is a typed reference to an external object of type T, holding either
// the object itself or a stub for it. Declare fields as *Ref[T] to keep
// externals lazy after loading.
type Ref[T any] struct {
	obj  *T
	stub *Stub
}

func RefTo[T any](obj *T) *Ref[T] {
	return &Ref[T]{obj: obj}
}

func (r *Ref[T]) Loaded() bool {
	if r.obj != nil {
		return true
	}
	return r.stub != nil && r.stub.Resolved()
}

// Stub returns the stub behind r, or nil if r was created from an object.
func (r *Ref[T]) Stub() *Stub {
	return r.stub
}

func (r *Ref[T]) ID() string {
	if r.obj != nil {
		if o, ok := any(r.obj).(Object); ok {
			return o.AquaDoc().ID()
		}
		return ""
	}
	if r.stub == nil {
		return ""
	}
	return r.stub.ID()
}

// Get returns the referenced object, loading it if needed. An empty ref
// returns nil.
func (r *Ref[T]) Get() (*T, error) {
	if r.obj != nil {
		return r.obj, nil
	}
	if r.stub == nil {
		return nil, nil
	}
	d, err := r.stub.Resolve()
	if err != nil {
		return nil, err
	}
	obj, ok := d.(*T)
	if !ok {
		return nil, &ResolutionError{r.stub.class, r.stub.id, fmt.Errorf("loaded %T, wanted %T", d, obj)}
	}
	r.obj = obj
	return obj, nil
}

// Cached answers name from the stub cache without loading.
func (r *Ref[T]) Cached(name string) (any, bool) {
	if r.stub == nil {
		return nil, false
	}
	return r.stub.Cached(name)
}

// Respond answers name from the stub cache when possible, otherwise from the
// loaded object.
func (r *Ref[T]) Respond(name string) (any, error) {
	if r.stub != nil {
		return r.stub.Respond(name)
	}
	if r.obj == nil {
		return nil, unknownCapabilityErrf(fmt.Sprintf("%T", r), name)
	}
	if rsp, ok := any(r.obj).(Responder); ok {
		return rsp.Respond(name)
	}
	return nil, fmt.Errorf("%T is not bound to a registry: %w", r.obj, ErrUnknownCapability)
}

func (r *Ref[T]) refFrom(v any) (any, error) {
	switch v := v.(type) {
	case *Ref[T]:
		return v, nil
	case *T:
		return RefTo(v), nil
	case *Stub:
		if d, ok := v.delegateIfResolved(); ok {
			if obj, ok := d.(*T); ok {
				return &Ref[T]{obj: obj, stub: v}, nil
			}
		}
		return &Ref[T]{stub: v}, nil
	default:
		return nil, fmt.Errorf("cannot assign %T to %T", v, r)
	}
}

// target reports what a ref packs as: the object, or the stub while it is
// still unresolved. An empty ref reports neither.
func (r *Ref[T]) target() (any, *Stub) {
	if r.obj != nil {
		return r.obj, nil
	}
	if r.stub == nil {
		return nil, nil
	}
	if d, ok := r.stub.delegateIfResolved(); ok {
		return d, nil
	}
	return nil, r.stub
}

type reference interface {
	target() (any, *Stub)
}
