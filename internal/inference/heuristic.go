package inference

import (
	"context"
	"errors"
)

// ErrNoModel is reported by the heuristic provider for every call.
var ErrNoModel = errors.New("no model configured")

// Heuristic is the provider used when no model is available. It is never
// ready, so callers always take their heuristic path.
type Heuristic struct{}

func (Heuristic) Infer(context.Context, string, Options) Result {
	return failure(ErrNoModel)
}

func (Heuristic) Ready() bool { return false }

func (Heuristic) Name() string { return ProviderHeuristic }

func (Heuristic) Close() error { return nil }
