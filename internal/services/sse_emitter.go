package services

import (
	"context"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

// HubEmitter delivers to clients connected to this process.
type HubEmitter struct{ Hub *realtime.SSEHub }

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Hub == nil {
		return
	}
	e.Hub.Broadcast(msg)
}

// RedisEmitter publishes through the bus so API replicas can forward the
// message to their own hubs.
type RedisEmitter struct {
	Bus      bus.Bus
	Fallback SSEEmitter
}

func (e *RedisEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Bus == nil {
		return
	}
	if err := e.Bus.Publish(ctx, msg); err != nil && e.Fallback != nil {
		e.Fallback.Emit(ctx, msg)
	}
}
