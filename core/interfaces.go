package core

import "context"

// Notifier is an interface to receive resource change notifications.
//
// The payload is the JSON representation of the affected record.
type Notifier interface {
	Notify(ctx context.Context, resource string, operation Operation, payload []byte) error
}
