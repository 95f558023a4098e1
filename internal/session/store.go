package session

import (
	"context"
	"time"
)

// Values is the key/value bag persisted for one session.
type Values map[string]string

// Store defines how session values are persisted between requests.
// Load returns nil values and a nil error when the session does not exist
// or has expired.
type Store interface {
	Load(ctx context.Context, id string) (Values, error)
	Save(ctx context.Context, id string, values Values, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
