package dispatch

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"meshbot/internal/ratelimit"
	"meshbot/internal/tracker"
)

// RadioSender is the minimal outbound surface reply needs from the radio
// driver — one frame per call, no rate limiting of its own.
type RadioSender interface {
	SendDM(ctx context.Context, recipientName, content string) error
	SendChannel(ctx context.Context, channelIndex int, content string) error
}

// ReplyConfig carries the per-bot tunables that shape every outbound send:
// the post-limiter TX delay and the channel echo-retry policy (spec.md
// §4.5, §4.6).
type ReplyConfig struct {
	TXDelay                 time.Duration
	ChannelRetryEnabled     bool
	ChannelRetryEchoWindow  time.Duration
	ChannelRetryMaxAttempts int
}

// Reply gates every outbound send through the global, TX and per-user
// limiters and a fixed TX delay before handing it to the radio, then
// records it with the transmission tracker so a later echo can confirm
// delivery and count repeats (spec.md §4.5, §4.6). A channel send that
// goes unechoed within ChannelRetryEchoWindow is resent, bypassing the
// per-user limiter since the resend is bot-initiated, not a new request.
type Reply struct {
	radio   RadioSender
	global  *ratelimit.Global
	tx      *ratelimit.TX
	perUser *ratelimit.PerUser
	tracker *tracker.Tracker
	log     *slog.Logger
	cfg     ReplyConfig
	sleep   func(ctx context.Context, d time.Duration)
}

func NewReply(radio RadioSender, global *ratelimit.Global, tx *ratelimit.TX, perUser *ratelimit.PerUser, trk *tracker.Tracker, cfg ReplyConfig, log *slog.Logger) *Reply {
	if log == nil {
		log = slog.Default()
	}
	return &Reply{
		radio:   radio,
		global:  global,
		tx:      tx,
		perUser: perUser,
		tracker: trk,
		cfg:     cfg,
		log:     log,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// SendDM sends to recipientName, returning (false, nil) when a limiter
// throttled the send rather than the radio rejecting it.
func (r *Reply) SendDM(ctx context.Context, recipientName, content, commandID string) (bool, error) {
	sent, err, _ := r.send(ctx, recipientName, content, commandID, tracker.TypeDM, false, func() error {
		return r.radio.SendDM(ctx, recipientName, content)
	})
	return sent, err
}

// SendChannel sends to a channel index, resolved by the caller. A
// successful send that has channel retry enabled schedules a background
// echo check: if no repeater has echoed the transmission back within the
// configured window, it is resent (up to ChannelRetryMaxAttempts times).
func (r *Reply) SendChannel(ctx context.Context, channelIndex int, content, commandID string) (bool, error) {
	target := channelTargetKey(channelIndex)
	sent, err, rec := r.send(ctx, target, content, commandID, tracker.TypeChannel, false, func() error {
		return r.radio.SendChannel(ctx, channelIndex, content)
	})
	if sent && err == nil && r.cfg.ChannelRetryEnabled && r.tracker != nil {
		go r.retryUntilEchoed(ctx, channelIndex, content, commandID, rec)
	}
	return sent, err
}

func (r *Reply) send(ctx context.Context, target, content, commandID string, typ tracker.TransmissionType, skipPerUser bool, doSend func() error) (bool, error, *tracker.Record) {
	now := time.Now()
	if r.global != nil && !r.global.CanSend(now) {
		r.global.RecordThrottled()
		return false, nil, nil
	}
	if !skipPerUser && r.perUser != nil && !r.perUser.Allow(target, now) {
		return false, nil, nil
	}
	if r.tx != nil {
		if err := r.tx.WaitForTX(ctx); err != nil {
			return false, err, nil
		}
	}
	r.sleep(ctx, r.cfg.TXDelay)

	if err := doSend(); err != nil {
		return false, err, nil
	}

	if r.global != nil {
		r.global.RecordSend(now)
	}
	var rec *tracker.Record
	if r.tracker != nil {
		rec = r.tracker.RecordSend(tracker.Record{
			Timestamp: now,
			Content:   content,
			Target:    target,
			Type:      typ,
			CommandID: commandID,
		})
	}
	return true, nil, rec
}

// retryUntilEchoed waits out the echo window after a channel send and, if
// no repeater has echoed it back by then, resends — skipping the per-user
// limiter, since the bot itself triggered the resend rather than a new
// user request — up to ChannelRetryMaxAttempts times total.
func (r *Reply) retryUntilEchoed(ctx context.Context, channelIndex int, content, commandID string, rec *tracker.Record) {
	target := channelTargetKey(channelIndex)
	for attempt := 1; attempt <= r.cfg.ChannelRetryMaxAttempts; attempt++ {
		r.sleep(ctx, r.cfg.ChannelRetryEchoWindow)
		if ctx.Err() != nil {
			return
		}
		if rec == nil || r.tracker.Echoed(rec) {
			return
		}

		sent, err, next := r.send(ctx, target, content, commandID, tracker.TypeChannel, true, func() error {
			return r.radio.SendChannel(ctx, channelIndex, content)
		})
		if err != nil {
			r.log.Warn("channel retry resend failed", "channel", channelIndex, "attempt", attempt, "error", err)
			return
		}
		if !sent {
			return
		}
		rec = next
	}
}

func channelTargetKey(channelIndex int) string {
	return "channel:" + strconv.Itoa(channelIndex)
}
