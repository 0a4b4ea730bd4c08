package quarry

import "github.com/scopedb/quarry-go/internal/strategy"

// Tag is the deployment selector that routes a request to one of the
// engine's two parallel deployments. It is an alias of the internal
// strategy package's Tag so the coordinator, invoker, and public façade
// all share one type without the façade importing coordination logic it
// doesn't own.
type Tag = strategy.Tag

const (
	TagUnset = strategy.Unset
	TagBlue  = strategy.Blue
	TagGreen = strategy.Green
)

// ParseTag normalizes a wire or environment value into a Tag.
func ParseTag(s string) (Tag, bool) { return strategy.Parse(s) }
