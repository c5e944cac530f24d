package backend

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/logger"
)

// notify publishes the representation of a written item. Failures are
// logged, the request has succeeded already.
func (b *Backend) notify(ctx context.Context, resource string, operation core.Operation, representation map[string]any) {
	if b.notifier == nil {
		return
	}
	rlog := logger.FromContext(ctx)
	payload, err := json.Marshal(representation)
	if err != nil {
		rlog.WithError(err).Errorf("Error 4731: cannot marshal notification for %s", resource)
		return
	}
	if err := b.notifier.Notify(ctx, resource, operation, payload); err != nil {
		rlog.WithError(err).Errorf("Error 4732: cannot notify %s %s", operation, resource)
	}
}
