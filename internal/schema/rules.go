package schema

import (
	"net/netip"

	"github.com/kedgeproxy/kedge/internal/kdl"
)

// Rule is one declarative structural constraint on a node. Rules are
// evaluated in order by Context.Validate; the first violation wins.
//
// The rule set is closed: implementations live in this package only.
type Rule interface {
	check(c *Context) error
}

// NoChildren fails when the node carries a children block.
var NoChildren Rule = noChildren{}

// NoPositionalArgs fails when any entry lacks a key.
var NoPositionalArgs Rule = noPositionalArgs{}

// KeyType pairs an allowed property key with its expected scalar kind.
type KeyType struct {
	Key  string
	Kind kdl.ValueKind
}

// OnlyKeysTyped allows exactly the given keys, each with a declared
// scalar kind. Unknown keys and kind mismatches both fail.
func OnlyKeysTyped(pairs ...KeyType) Rule {
	return onlyKeysTyped(pairs)
}

// NamePredicate constrains the node's literal name, for blocks whose
// child names themselves carry data (`listeners` children are named by
// socket address, like `"127.0.0.1:8080" { ... }`).
type NamePredicate interface {
	match(name string) error
	describe() string
}

// NameIs applies a predicate to the node name.
func NameIs(p NamePredicate) Rule {
	return nameIs{p}
}

// SocketAddr requires the name to parse as host:port.
var SocketAddr NamePredicate = socketAddrPredicate{}

// Validate evaluates rules in order against the current node; the
// first failing rule determines the returned diagnostic.
func (c *Context) Validate(rules ...Rule) error {
	for _, r := range rules {
		if err := r.check(c); err != nil {
			return err
		}
	}
	return nil
}

type noChildren struct{}

func (noChildren) check(c *Context) error {
	has, err := c.HasChildren()
	if err != nil {
		return err
	}
	if has {
		name, _ := c.Name()
		return c.Errorf(KindStructural, "Node '%s' does not take a children block", name)
	}
	return nil
}

type noPositionalArgs struct{}

func (noPositionalArgs) check(c *Context) error {
	args, err := c.Args()
	if err != nil {
		return err
	}
	for _, a := range args {
		if a.Name == "" {
			return c.ErrorAt(KindStructural, a.Span,
				"Unexpected positional argument %s", a.Value.Describe())
		}
	}
	return nil
}

type onlyKeysTyped []KeyType

func (pairs onlyKeysTyped) check(c *Context) error {
	args, err := c.Args()
	if err != nil {
		return err
	}

	allowed := make([]string, 0, len(pairs))
	for _, p := range pairs {
		allowed = append(allowed, p.Key)
	}

	for _, a := range args {
		if a.Name == "" {
			continue
		}
		expected, ok := lookupKind(pairs, a.Name)
		if !ok {
			return c.ErrorAt(KindUnknownKey, a.Span,
				"Unknown configuration key: '%s'. Allowed keys are: %q", a.Name, allowed)
		}
		if a.Value.Kind != expected {
			return c.ErrorAt(KindTypeMismatch, a.Span,
				"Expected %s for key '%s', found %s", expected, a.Name, a.Value.Describe())
		}
	}
	return nil
}

func lookupKind(pairs []KeyType, key string) (kdl.ValueKind, bool) {
	for _, p := range pairs {
		if p.Key == key {
			return p.Kind, true
		}
	}
	return 0, false
}

type nameIs struct {
	p NamePredicate
}

func (r nameIs) check(c *Context) error {
	name, err := c.Name()
	if err != nil {
		return err
	}
	if err := r.p.match(name); err != nil {
		return c.ErrorAt(KindFormat, c.NameSpan(),
			"Node name '%s' is not %s: %v", name, r.p.describe(), err)
	}
	return nil
}

type socketAddrPredicate struct{}

func (socketAddrPredicate) match(name string) error {
	_, err := netip.ParseAddrPort(name)
	return err
}

func (socketAddrPredicate) describe() string {
	return "a socket address like \"127.0.0.1:8080\""
}
