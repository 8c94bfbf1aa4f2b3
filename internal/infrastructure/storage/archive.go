// Package storage provides the archive backends that keep a copy of
// every downloaded shipping label.
package storage

import (
	"context"
	"fmt"
	"time"
)

// DocumentArchive stores downloaded shipping documents so a label can be
// reprinted without another platform round trip.
type DocumentArchive interface {
	// Store persists the document bytes for an order and returns the
	// location the backend stored it at.
	Store(ctx context.Context, orderID string, data []byte) (string, error)
}

// documentKey builds the archive key for an order's label. Keys are
// partitioned by month so backends stay browsable as volume grows.
func documentKey(orderID string, now time.Time) string {
	return fmt.Sprintf("%s/%s.pdf", now.Format("2006-01"), orderID)
}
