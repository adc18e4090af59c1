package schema

// Block consumes a node's direct children against a closed schema.
//
// Each Required/Optional/Repeated call removes the matching children
// from a pending set; Exhaust must run last and fails if anything is
// left, so a block can never silently ignore a typo'd or extraneous
// directive.
type Block struct {
	ctx     *Context
	pending []*Context
}

// NewBlock starts consuming the children of ctx. A node-focused ctx is
// entered as a block first (and must have one); a document-focused ctx
// is consumed directly.
func NewBlock(ctx *Context) (*Block, error) {
	inner := ctx
	if ctx.node != nil {
		entered, err := ctx.EnterBlock()
		if err != nil {
			return nil, err
		}
		inner = entered
	}
	pending, err := inner.Nodes()
	if err != nil {
		return nil, err
	}
	return &Block{ctx: inner, pending: pending}, nil
}

// take removes and returns the first pending child named name.
func (b *Block) take(name string) *Context {
	for i, child := range b.pending {
		n, err := child.Name()
		if err != nil {
			continue
		}
		if n == name {
			b.pending = append(b.pending[:i:i], b.pending[i+1:]...)
			return child
		}
	}
	return nil
}

// Required consumes exactly one directive of the given name and
// extracts a value from its context. A missing directive fails.
func Required[T any](b *Block, name string, extract func(*Context) (T, error)) (T, error) {
	var zero T
	child := b.take(name)
	if child == nil {
		return zero, b.ctx.Errorf(KindMissingRequired, "Missing required directive '%s'", name)
	}
	return extract(child)
}

// Optional consumes at most one directive of the given name; nil when
// absent.
func Optional[T any](b *Block, name string, extract func(*Context) (T, error)) (*T, error) {
	child := b.take(name)
	if child == nil {
		return nil, nil
	}
	v, err := extract(child)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Repeated consumes every directive of the given name, in source
// order. Zero matches yield an empty slice, not an error.
func Repeated[T any](b *Block, name string, extract func(*Context) (T, error)) ([]T, error) {
	var out []T
	for {
		child := b.take(name)
		if child == nil {
			return out, nil
		}
		v, err := extract(child)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// Exhaust must be the final operation on a Block. It fails with the
// name of the first still-pending child.
func (b *Block) Exhaust() error {
	if len(b.pending) == 0 {
		return nil
	}
	first := b.pending[0]
	name, err := first.Name()
	if err != nil {
		return err
	}
	return first.Errorf(KindUnknownDirective, "Unknown directive: '%s'", name)
}
