package aqua

// External is an object referenced from a packed tree but stored as its own
// document. Paths lists every stub node standing in for it, in discovery
// order.
type External struct {
	Object Object
	Paths  []Path
}

// Attachment is binary content stored alongside the packed document under
// Name.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Rat accumulates the result of a pack walk: the packed tree, the externals
// discovered inside it and the attachments it references.
type Rat struct {
	Pack        *Node
	Externals   []*External
	Attachments []*Attachment

	index map[Object]*External
}

func newRat(n *Node) *Rat {
	return &Rat{Pack: n}
}

// External returns the entry for obj, or nil if obj is not referenced as an
// external.
func (r *Rat) External(obj Object) *External {
	return r.index[obj]
}

func (r *Rat) addExternal(obj Object, paths ...Path) {
	if ext := r.index[obj]; ext != nil {
		ext.Paths = append(ext.Paths, paths...)
		return
	}
	if r.index == nil {
		r.index = make(map[Object]*External)
	}
	ext := &External{Object: obj, Paths: append([]Path(nil), paths...)}
	r.index[obj] = ext
	r.Externals = append(r.Externals, ext)
}

// Eat merges the externals and attachments of other into r. Externals are
// unioned by identity, keeping first-discovery order.
func (r *Rat) Eat(other *Rat) *Rat {
	if other == nil {
		return r
	}
	for _, ext := range other.Externals {
		r.addExternal(ext.Object, ext.Paths...)
	}
	r.Attachments = append(r.Attachments, other.Attachments...)
	return r
}

// Hoard inserts child's tree under r.Pack at step and eats child.
func (r *Rat) Hoard(step PathStep, child *Rat) *Rat {
	r.Pack.insert(step, child.Pack)
	return r.Eat(child)
}
