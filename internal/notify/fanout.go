package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// initialRetryInterval seeds the per-publish exponential backoff.
const initialRetryInterval = 100 * time.Millisecond

// DeliveryOutcome is the per-device result of one fan-out attempt.
type DeliveryOutcome struct {
	DeviceID  string
	Delivered bool
	Attempts  int
	Error     string
}

// Config tunes fan-out width and retry budget.
type Config struct {
	// MaxConcurrency caps in-flight publishes; must be >= 1.
	MaxConcurrency int
	// MaxAttempts is the per-device publish budget; must be >= 1.
	MaxAttempts int
	// PublishRate limits publishes per second; 0 disables the limiter.
	PublishRate int
}

// Fanout delivers one notification to many devices. Deliveries are mutually
// independent: a failed publish never aborts the rest of the set.
type Fanout struct {
	pub         Publisher
	maxInFlight int
	maxAttempts int
	limiter     *rate.Limiter
	log         zerolog.Logger
}

// NewFanout returns a fan-out over pub with the given bounds.
func NewFanout(pub Publisher, cfg Config, log zerolog.Logger) *Fanout {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	var limiter *rate.Limiter
	if cfg.PublishRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PublishRate), cfg.PublishRate)
	}
	return &Fanout{
		pub:         pub,
		maxInFlight: cfg.MaxConcurrency,
		maxAttempts: cfg.MaxAttempts,
		limiter:     limiter,
		log:         log.With().Str("component", "fanout").Logger(),
	}
}

// Notify serializes the notification once and publishes it to every device's
// OTA topic, at most maxInFlight at a time. It joins all deliveries before
// returning; outcomes are indexed to match deviceIDs. Transient publish
// failures are retried with exponential backoff up to the attempt budget;
// context cancellation stops retrying but does not retract sent publishes.
func (f *Fanout) Notify(ctx context.Context, deviceIDs []string, n *OtaNotification) []DeliveryOutcome {
	outcomes := make([]DeliveryOutcome, len(deviceIDs))

	payload, err := json.Marshal(n)
	if err != nil {
		for i, id := range deviceIDs {
			outcomes[i] = DeliveryOutcome{DeviceID: id, Error: err.Error()}
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(f.maxInFlight)
	for i, id := range deviceIDs {
		g.Go(func() error {
			outcomes[i] = f.deliver(ctx, id, payload)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (f *Fanout) deliver(ctx context.Context, deviceID string, payload []byte) DeliveryOutcome {
	topic := TopicFor(deviceID)
	attempts := 0

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return DeliveryOutcome{DeviceID: deviceID, Error: err.Error()}
		}
	}

	operation := func() (struct{}, error) {
		attempts++
		if err := f.pub.Publish(ctx, topic, payload); err != nil {
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = initialRetryInterval
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(f.maxAttempts)),
	)
	if err != nil {
		f.log.Warn().Err(err).Str("device_id", deviceID).Int("attempts", attempts).Msg("delivery failed")
		return DeliveryOutcome{DeviceID: deviceID, Attempts: attempts, Error: err.Error()}
	}
	return DeliveryOutcome{DeviceID: deviceID, Delivered: true, Attempts: attempts}
}
