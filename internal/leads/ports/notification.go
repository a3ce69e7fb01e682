package ports

import "context"

// NotificationPort delivers operator alerts. Delivery is best effort.
type NotificationPort interface {
	SendAlert(ctx context.Context, message string) error
}
