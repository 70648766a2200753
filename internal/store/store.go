package store

import (
	"context"
	"errors"
)

// Well-known slot keys.
const (
	SlotNotifications       = "notifications"
	SlotNotificationsBackup = "notifications_backup"
)

// ErrSlotNotFound is returned when a slot has never been written.
var ErrSlotNotFound = errors.New("slot not found")

// SlotStore is process-wide durable key-value storage. Each slot holds an
// opaque value that survives restarts. Writes to different slots are
// independent; there is no transaction spanning two slots.
type SlotStore interface {
	// GetSlot returns the stored value or ErrSlotNotFound.
	GetSlot(ctx context.Context, key string) ([]byte, error)

	// PutSlot creates or replaces the value for key.
	PutSlot(ctx context.Context, key string, value []byte) error
}
