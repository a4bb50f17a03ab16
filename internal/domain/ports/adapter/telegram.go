// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// Notifier pushes short operator messages (job ready, job failed).
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
