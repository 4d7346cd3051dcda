package external

import (
	"context"

	"airsight/internal/types"
)

// TokenSource supplies a bearer credential for the hosted model endpoints.
//
// Token returns (token, true) when a valid credential is available and
// ("", false) otherwise. Absence of credentials is a normal "remote path
// disabled" signal, not an error, so the method deliberately has no error
// return: callers only ever branch on availability.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
	Configured() bool
	Authenticated() bool
}

// Predictor invokes a hosted model and decodes its response into out.
// Implementations make a single bounded-timeout attempt; any failure is
// returned as a *types.AppError with a remote_* code for the caller to
// treat as a fallback signal. There are no retries by design: the local
// simulator is cheap and always available, so falling back beats retrying
// a flaky remote call.
type Predictor interface {
	Invoke(ctx context.Context, model types.ModelKind, payload any, out any) error
	Models() map[types.ModelKind]string
}
