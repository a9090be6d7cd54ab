package doorbell

import (
	"context"
	"fmt"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// DefaultMaxDepth bounds nested calls back into the enclave.
const DefaultMaxDepth = 10

// CallContext travels with a call into the enclave. The root context has
// depth zero; the first Enter is the outermost call and every further Enter
// is a re-entrant one.
type CallContext struct {
	depth    int
	maxDepth int
	bell     *Doorbell
}

func NewCallContext(bell *Doorbell, maxDepth int) *CallContext {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &CallContext{bell: bell, maxDepth: maxDepth}
}

// Enter returns the context for one level deeper.
func (c *CallContext) Enter() (*CallContext, error) {
	if c.depth+1 > c.maxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds %d", interfaces.ErrRecursionLimit, c.depth+1, c.maxDepth)
	}
	return &CallContext{depth: c.depth + 1, maxDepth: c.maxDepth, bell: c.bell}, nil
}

func (c *CallContext) Depth() int { return c.depth }

// IsOutermost is true for the first entered level.
func (c *CallContext) IsOutermost() bool { return c.depth <= 1 }

// Acquire admits this call through the doorbell it carries.
func (c *CallContext) Acquire(ctx context.Context) (*Token, error) {
	if c.bell == nil {
		return nil, fmt.Errorf("%w: call context has no doorbell", interfaces.ErrNotInitialized)
	}
	return c.bell.Acquire(ctx, c)
}
