package dispatch

import (
	"context"
	"fmt"

	"outreach_backend/internal/outreach/repository"
)

// Gate holds back all dispatch while any voice call is not yet terminal.
// It reads the call store on every check so every instance sees the same state.
type Gate struct {
	calls repository.CallStore
}

func NewGate(calls repository.CallStore) *Gate {
	return &Gate{calls: calls}
}

// Open reports whether dispatch may proceed.
func (g *Gate) Open(ctx context.Context) (bool, error) {
	active, err := g.calls.ExistsActiveCall(ctx)
	if err != nil {
		return false, fmt.Errorf("check active calls: %w", err)
	}
	return !active, nil
}
