package services

import (
	"context"

	applog "fintrack/internal/log"
)

// logFor returns the request logger, or the process default, stamped with
// component.
func logFor(ctx context.Context, component string) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(component)
}
