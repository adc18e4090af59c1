package config

import (
	"github.com/kedgeproxy/kedge/internal/schema"
)

// SectionParser is the uniform contract every domain schema
// implements: one node context in, a typed section value or a
// diagnostic out. Distinct schemas compose by handing sub-contexts to
// each other.
type SectionParser[T any] interface {
	ParseNode(ctx *schema.Context) (T, error)
}
