package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

// outboundBuffer bounds how far a slow browser may lag before it misses events.
const outboundBuffer = 32

// SSEClient is one open event stream. Channels is guarded by the hub's lock.
type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	Logger   *logger.Logger

	done chan struct{}
	once sync.Once
}

// Done is closed when the hub drops the client.
func (c *SSEClient) Done() <-chan struct{} { return c.done }

// offer queues msg without blocking and reports whether it was accepted.
func (c *SSEClient) offer(msg SSEMessage) bool {
	select {
	case c.Outbound <- msg:
		return true
	default:
		return false
	}
}
