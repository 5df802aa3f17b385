package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"meshbot/internal/persistence"
)

const (
	channelOpsPollInterval = 5 * time.Second
	channelOpsTimeout      = 30 * time.Second
)

// ChannelOpsStore is the persistence surface the poller drains.
type ChannelOpsStore interface {
	Pending(ctx context.Context) ([]persistence.ChannelOp, error)
	MarkCompleted(ctx context.Context, id int64, resultJSON string, now time.Time) error
	MarkFailed(ctx context.Context, id int64, resultJSON string, now time.Time) error
}

// ChannelApplier applies a queued add/remove channel operation to the
// connected device.
type ChannelApplier interface {
	AddChannel(ctx context.Context, name, keyHex string) (idx int, err error)
	RemoveChannel(ctx context.Context, idx int) error
}

// ChannelOpsPoller drains the channel_operations queue every 5s, applying
// each pending row to the device and writing back its outcome (spec.md
// §4.9).
type ChannelOpsPoller struct {
	store   ChannelOpsStore
	device  ChannelApplier
	log     *slog.Logger
	now     func() time.Time
}

func NewChannelOpsPoller(store ChannelOpsStore, device ChannelApplier, log *slog.Logger) *ChannelOpsPoller {
	if log == nil {
		log = slog.Default()
	}
	return &ChannelOpsPoller{store: store, device: device, log: log, now: time.Now}
}

func (p *ChannelOpsPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(channelOpsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *ChannelOpsPoller) drain(ctx context.Context) {
	ops, err := p.store.Pending(ctx)
	if err != nil {
		p.log.Warn("channel ops queue read failed", "error", err)
		return
	}
	for _, op := range ops {
		p.apply(ctx, op)
	}
}

func (p *ChannelOpsPoller) apply(ctx context.Context, op persistence.ChannelOp) {
	opCtx, cancel := context.WithTimeout(ctx, channelOpsTimeout)
	defer cancel()

	var err error
	var result map[string]any

	switch op.Type {
	case persistence.ChannelOpAdd:
		var idx int
		idx, err = p.device.AddChannel(opCtx, op.ChannelName, op.ChannelKeyHex)
		result = map[string]any{"channel_idx": idx}
	case persistence.ChannelOpRemove:
		err = p.device.RemoveChannel(opCtx, op.ChannelIdx)
		result = map[string]any{}
	}

	resultJSON, _ := json.Marshal(result)
	if err != nil {
		p.log.Warn("channel operation failed", "id", op.ID, "type", op.Type, "error", err)
		_ = p.store.MarkFailed(ctx, op.ID, string(resultJSON), p.now())
		return
	}
	_ = p.store.MarkCompleted(ctx, op.ID, string(resultJSON), p.now())
}
