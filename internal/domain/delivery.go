package domain

import (
	"context"
	"errors"
)

// ErrSourceClosed marks a batch source that will never deliver again.
var ErrSourceClosed = errors.New("batch source closed")

// Delivery is one batch payload read from a batch source, along with
// transport metadata for logging and a callback to acknowledge it.
type Delivery struct {
	ID      string
	Payload []byte
	Source  string // topic or queue name
	Commit  func(ctx context.Context) error
}
