// Package channel delivers out-of-band challenge codes. The engine only
// knows the Dispatcher interface; real SMS and email gateways plug in at
// wiring time.
package channel

import (
	"context"
	"log/slog"

	"github.com/halcyonsec/authcore/internal/authcore/domain"
)

// Dispatcher sends a one-time code to the principal over the factor's
// out-of-band channel. TOTP and BIOMETRIC factors never hit a dispatcher.
type Dispatcher interface {
	Send(ctx context.Context, principalID string, kind domain.FactorKind, code string) error
}

// LogDispatcher logs the delivery instead of sending it. Stands in for a
// real gateway in development; the code itself is never logged.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) Send(ctx context.Context, principalID string, kind domain.FactorKind, code string) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "challenge code dispatched",
		slog.String("principal_id", principalID),
		slog.String("kind", string(kind)),
		slog.Int("code_length", len(code)),
	)
	return nil
}
