package schema

import (
	"encoding"
	"reflect"
	"strconv"

	"github.com/kedgeproxy/kedge/internal/kdl"
)

// TypedValue is a read-only handle to one entry plus the context that
// produced it, so coercion failures can point at the value's own span
// rather than the whole node.
type TypedValue struct {
	ctx   *Context
	entry *kdl.Entry
}

// Span returns the entry's source span.
func (v TypedValue) Span() kdl.Span { return v.entry.Span }

// Raw returns the underlying scalar.
func (v TypedValue) Raw() kdl.Value { return v.entry.Value }

// AsString requires a string scalar.
func (v TypedValue) AsString() (string, error) {
	s, ok := v.entry.Value.AsString()
	if !ok {
		return "", v.ctx.ErrorAt(KindTypeMismatch, v.entry.Span,
			"Expected a string value, found %s", v.entry.Value.Describe())
	}
	return s, nil
}

// AsInt requires a non-negative integer scalar.
func (v TypedValue) AsInt() (int, error) {
	i, ok := v.entry.Value.AsInt()
	if !ok || i < 0 {
		return 0, v.ctx.ErrorAt(KindTypeMismatch, v.entry.Span,
			"Expected a positive integer, found %s", v.entry.Value.Describe())
	}
	return int(i), nil
}

// AsBool requires a boolean scalar.
func (v TypedValue) AsBool() (bool, error) {
	b, ok := v.entry.Value.AsBool()
	if !ok {
		return false, v.ctx.ErrorAt(KindTypeMismatch, v.entry.Span,
			"Expected a boolean, found %s", v.entry.Value.Describe())
	}
	return b, nil
}

// AsFloat requires a numeric scalar; integers widen to float64.
func (v TypedValue) AsFloat() (float64, error) {
	switch v.entry.Value.Kind {
	case kdl.KindFloat:
		return v.entry.Value.Float, nil
	case kdl.KindInteger:
		return float64(v.entry.Value.Int), nil
	}
	return 0, v.ctx.ErrorAt(KindTypeMismatch, v.entry.Span,
		"Expected a number, found %s", v.entry.Value.Describe())
}

// AsStringLossy coerces string, integer, float and boolean scalars to
// their textual form. Only null refuses coercion.
func (v TypedValue) AsStringLossy() (string, error) {
	val := v.entry.Value
	switch val.Kind {
	case kdl.KindString:
		return val.Str, nil
	case kdl.KindInteger:
		return strconv.FormatInt(val.Int, 10), nil
	case kdl.KindFloat:
		return strconv.FormatFloat(val.Float, 'g', -1, 64), nil
	case kdl.KindBool:
		return strconv.FormatBool(val.Bool), nil
	}
	return "", v.ctx.ErrorAt(KindTypeMismatch, v.entry.Span,
		"Cannot parse 'null' as a string or number")
}

// ParseAs constructs a target type from the value's lossy string form
// via encoding.TextUnmarshaler. Domain scalar types (addresses,
// qualified identifiers) plug into this one error-reporting path: a
// parse failure renders the type's simple name, the offending literal
// and the underlying reason.
func ParseAs[T any, PT interface {
	*T
	encoding.TextUnmarshaler
}](v TypedValue) (T, error) {
	var out T

	raw, err := v.AsStringLossy()
	if err != nil {
		return out, err
	}

	if err := PT(&out).UnmarshalText([]byte(raw)); err != nil {
		return out, v.ctx.ErrorAt(KindFormat, v.entry.Span,
			"Invalid %s '%s'. Reason: %v", typeName(&out), raw, err)
	}
	return out, nil
}

func typeName(p any) string {
	t := reflect.TypeOf(p).Elem()
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// First returns the node's first entry of any kind.
func (c *Context) First() (TypedValue, error) {
	args, err := c.Args()
	if err != nil {
		return TypedValue{}, err
	}
	if len(args) == 0 {
		return TypedValue{}, c.Errorf(KindMissingRequired, "Missing required first argument")
	}
	return TypedValue{ctx: c, entry: &args[0]}, nil
}

// Arg returns the i-th positional (unnamed) entry.
func (c *Context) Arg(index int) (TypedValue, error) {
	args, err := c.Args()
	if err != nil {
		return TypedValue{}, err
	}
	n := 0
	for i := range args {
		if args[i].Name != "" {
			continue
		}
		if n == index {
			return TypedValue{ctx: c, entry: &args[i]}, nil
		}
		n++
	}
	return TypedValue{}, c.Errorf(KindMissingRequired,
		"Missing required argument at position %d", index+1)
}

// Prop returns the named entry for key; missing keys are an error. A
// duplicated key resolves to its first occurrence.
func (c *Context) Prop(key string) (TypedValue, error) {
	v, err := c.OptProp(key)
	if err != nil {
		return TypedValue{}, err
	}
	if v == nil {
		return TypedValue{}, c.Errorf(KindMissingRequired, "Missing required property '%s'", key)
	}
	return *v, nil
}

// OptProp returns the named entry for key, or nil when absent.
func (c *Context) OptProp(key string) (*TypedValue, error) {
	args, err := c.Args()
	if err != nil {
		return nil, err
	}
	for i := range args {
		if args[i].Name == key {
			return &TypedValue{ctx: c, entry: &args[i]}, nil
		}
	}
	return nil, nil
}

// Props looks up several optional keys at once; absent keys yield nil
// slots, in the order the keys were given.
func (c *Context) Props(keys ...string) ([]*TypedValue, error) {
	out := make([]*TypedValue, len(keys))
	for i, key := range keys {
		v, err := c.OptProp(key)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// OptString unwraps an optional property as a string; nil stays nil.
func OptString(v *TypedValue) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := v.AsString()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// OptBool unwraps an optional property as a bool; nil stays nil.
func OptBool(v *TypedValue) (*bool, error) {
	if v == nil {
		return nil, nil
	}
	b, err := v.AsBool()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// OptInt unwraps an optional property as an int; nil stays nil.
func OptInt(v *TypedValue) (*int, error) {
	if v == nil {
		return nil, nil
	}
	i, err := v.AsInt()
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// OptFloat unwraps an optional property as a float; nil stays nil.
func OptFloat(v *TypedValue) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	f, err := v.AsFloat()
	if err != nil {
		return nil, err
	}
	return &f, nil
}
