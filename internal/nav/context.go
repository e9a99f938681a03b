package nav

import (
	"fmt"
	"strings"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/pathkey"
)

// State is the navigator's coarse state.
type State int

const (
	StateNoBucket State = iota
	StateAtPrefix
)

func (s State) String() string {
	switch s {
	case StateNoBucket:
		return "no_bucket"
	case StateAtPrefix:
		return "at_prefix"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Strategy selects how much of a bucket one fetch lists.
type Strategy int

const (
	// StrategyLazy lists recursively under the current prefix and reuses the
	// result for every subfolder.
	StrategyLazy Strategy = iota
	// StrategyEager lists the whole bucket once and filters locally.
	StrategyEager
)

func (s Strategy) String() string {
	if s == StrategyEager {
		return "eager"
	}
	return "lazy"
}

// ParseStrategy accepts "lazy", "eager" or "" (lazy).
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lazy":
		return StrategyLazy, nil
	case "eager":
		return StrategyEager, nil
	default:
		return StrategyLazy, errs.Newf(errs.KindInvalidInput, "unknown listing mode %q (want lazy or eager)", s)
	}
}

// Context is the current bucket and folder stack. Stack entries are never
// empty and never contain a separator.
type Context struct {
	Bucket string
	Stack  []string
}

// Prefix joins the stack into a key prefix with a trailing separator, or ""
// at the bucket root.
func (c Context) Prefix() string {
	if len(c.Stack) == 0 {
		return ""
	}
	return strings.Join(c.Stack, pathkey.Separator) + pathkey.Separator
}

// Location returns the context as a store location.
func (c Context) Location() pathkey.Location {
	if c.Bucket == "" {
		return pathkey.Location{}
	}
	return pathkey.New(c.Bucket, c.Prefix())
}

func (c Context) clone() Context {
	return Context{Bucket: c.Bucket, Stack: append([]string(nil), c.Stack...)}
}

// splitPrefix turns a key into stack segments, dropping empty ones.
func splitPrefix(key string) []string {
	var stack []string
	for _, seg := range strings.Split(key, pathkey.Separator) {
		if seg != "" {
			stack = append(stack, seg)
		}
	}
	return stack
}
