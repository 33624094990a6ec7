package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakePublisher records publishes and fails topics listed in failTopics.
type fakePublisher struct {
	mu         sync.Mutex
	published  map[string][][]byte
	failTopics map[string]int // topic -> remaining failures
	inFlight   int
	maxSeen    int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string][][]byte), failTopics: make(map[string]int)}
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	// Dwell briefly so concurrent publishes overlap and maxSeen is meaningful.
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if remaining := f.failTopics[topic]; remaining != 0 {
		f.failTopics[topic] = remaining - 1
		return errors.New("channel unavailable")
	}
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[topic])
}

func testNotification() *OtaNotification {
	return NewOtaAvailable("1.4.0", "sha256:abc", "https://store/fw.bin?sig=x", 524288, "canary")
}

func TestTopicFor(t *testing.T) {
	if got := TopicFor("dev-1"); got != "devices/dev-1/ota" {
		t.Errorf("TopicFor = %q, want %q", got, "devices/dev-1/ota")
	}
}

func TestNotify_DeliversToEveryDeviceOnce(t *testing.T) {
	pub := newFakePublisher()
	f := NewFanout(pub, Config{MaxConcurrency: 4, MaxAttempts: 1}, zerolog.Nop())

	ids := []string{"dev-1", "dev-2", "dev-3"}
	outcomes := f.Notify(context.Background(), ids, testNotification())

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	for i, o := range outcomes {
		if o.DeviceID != ids[i] {
			t.Errorf("outcome[%d].DeviceID = %q, want %q", i, o.DeviceID, ids[i])
		}
		if !o.Delivered {
			t.Errorf("outcome[%d] not delivered: %s", i, o.Error)
		}
		if got := pub.count(TopicFor(ids[i])); got != 1 {
			t.Errorf("device %s received %d publishes, want 1", ids[i], got)
		}
	}
}

func TestNotify_PayloadShape(t *testing.T) {
	pub := newFakePublisher()
	f := NewFanout(pub, Config{MaxConcurrency: 1, MaxAttempts: 1}, zerolog.Nop())

	f.Notify(context.Background(), []string{"dev-1"}, testNotification())

	pub.mu.Lock()
	payloads := pub.published["devices/dev-1/ota"]
	pub.mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}

	var msg map[string]any
	if err := json.Unmarshal(payloads[0], &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if msg["type"] != "ota_available" {
		t.Errorf("type = %v, want ota_available", msg["type"])
	}
	fw, ok := msg["firmware"].(map[string]any)
	if !ok {
		t.Fatal("payload missing firmware object")
	}
	if fw["version"] != "1.4.0" || fw["checksum"] != "sha256:abc" {
		t.Errorf("firmware = %v", fw)
	}
	if fw["download_url"] != "https://store/fw.bin?sig=x" {
		t.Errorf("download_url = %v", fw["download_url"])
	}
	ri, ok := msg["rollout_info"].(map[string]any)
	if !ok {
		t.Fatal("payload missing rollout_info object")
	}
	if ri["stage"] != "canary" || ri["priority"] != "normal" {
		t.Errorf("rollout_info = %v", ri)
	}
}

func TestNotify_OneFailureDoesNotAbortSiblings(t *testing.T) {
	pub := newFakePublisher()
	pub.failTopics[TopicFor("dev-2")] = -1 // always fails
	f := NewFanout(pub, Config{MaxConcurrency: 2, MaxAttempts: 1}, zerolog.Nop())

	ids := []string{"dev-1", "dev-2", "dev-3"}
	outcomes := f.Notify(context.Background(), ids, testNotification())

	delivered := 0
	for _, o := range outcomes {
		if o.Delivered {
			delivered++
		}
	}
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if outcomes[1].Delivered {
		t.Error("dev-2 should have failed")
	}
	if outcomes[1].Error == "" {
		t.Error("failed outcome should carry an error detail")
	}
	if pub.count(TopicFor("dev-1")) != 1 || pub.count(TopicFor("dev-3")) != 1 {
		t.Error("siblings of the failing device should still receive the message")
	}
}

func TestNotify_RetryRecoversTransientFailure(t *testing.T) {
	pub := newFakePublisher()
	pub.failTopics[TopicFor("dev-1")] = 2 // fails twice, then succeeds
	f := NewFanout(pub, Config{MaxConcurrency: 1, MaxAttempts: 3}, zerolog.Nop())

	outcomes := f.Notify(context.Background(), []string{"dev-1"}, testNotification())

	if !outcomes[0].Delivered {
		t.Fatalf("delivery should recover within the attempt budget: %s", outcomes[0].Error)
	}
	if outcomes[0].Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcomes[0].Attempts)
	}
}

func TestNotify_AttemptBudgetExhausted(t *testing.T) {
	pub := newFakePublisher()
	pub.failTopics[TopicFor("dev-1")] = -1
	f := NewFanout(pub, Config{MaxConcurrency: 1, MaxAttempts: 2}, zerolog.Nop())

	outcomes := f.Notify(context.Background(), []string{"dev-1"}, testNotification())

	if outcomes[0].Delivered {
		t.Fatal("delivery should fail once the budget is spent")
	}
	if outcomes[0].Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", outcomes[0].Attempts)
	}
}

func TestNotify_RespectsConcurrencyBound(t *testing.T) {
	pub := newFakePublisher()
	f := NewFanout(pub, Config{MaxConcurrency: 2, MaxAttempts: 1}, zerolog.Nop())

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("dev-%d", i)
	}
	f.Notify(context.Background(), ids, testNotification())

	pub.mu.Lock()
	maxSeen := pub.maxSeen
	pub.mu.Unlock()
	if maxSeen > 2 {
		t.Errorf("max in-flight publishes = %d, want <= 2", maxSeen)
	}
}

func TestNotify_EmptySet(t *testing.T) {
	pub := newFakePublisher()
	f := NewFanout(pub, Config{MaxConcurrency: 4, MaxAttempts: 1}, zerolog.Nop())

	outcomes := f.Notify(context.Background(), nil, testNotification())
	if len(outcomes) != 0 {
		t.Errorf("got %d outcomes for an empty set, want 0", len(outcomes))
	}
}
