package bus

import (
	"context"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
)

// Bus fans SSE messages out across processes so a worker can reach clients
// connected to any API replica.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
