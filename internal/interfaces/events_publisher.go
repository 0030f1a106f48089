package interfaces

import "context"

// EventPublisher delivers domain events after the change they describe has
// been committed. Callers treat a publish failure as non-fatal.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}
