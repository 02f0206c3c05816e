package realtime

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
)

func TestNewRedisBus_MissingAddr(t *testing.T) {
	if _, err := NewRedisBus(context.Background(), logger.Discard(), "  ", ""); err == nil {
		t.Error("expected error for empty address")
	}
}

func TestNewRedisBus_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// port 1 is never a redis server
	if _, err := NewRedisBus(ctx, logger.Discard(), "127.0.0.1:1", ""); err == nil {
		t.Error("expected ping failure")
	}
}

func TestBus_DecodeSkipsOwnMessages(t *testing.T) {
	a := newBus(logger.Discard(), nil, DefaultChannel)
	b := newBus(logger.Discard(), nil, DefaultChannel)
	if a.Origin() == b.Origin() {
		t.Fatal("instances must get distinct origins")
	}

	msg := models.WSMessage{Type: "dish_votes", Payload: map[string]int{"dish_id": 4}}
	raw, err := a.encode(msg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if _, ok := a.decode(raw); ok {
		t.Error("publisher must not receive its own message")
	}
	got, ok := b.decode(raw)
	if !ok {
		t.Fatal("other instance should accept the message")
	}
	if got.Type != "dish_votes" {
		t.Errorf("unexpected type %q", got.Type)
	}
	payload, _ := json.Marshal(got.Payload)
	if string(payload) != `{"dish_id":4}` {
		t.Errorf("unexpected payload %s", payload)
	}
}

func TestBus_DecodeRejectsBadPayloads(t *testing.T) {
	b := newBus(logger.Discard(), nil, DefaultChannel)
	for _, raw := range []string{"not json", `{"origin":"x"}`, `{"origin":"x","message":{"type":""}}`} {
		if _, ok := b.decode([]byte(raw)); ok {
			t.Errorf("payload %q should be dropped", raw)
		}
	}
}

func TestBus_NilSafety(t *testing.T) {
	var b *RedisBus
	if err := b.Publish(context.Background(), models.WSMessage{Type: "x"}); err == nil {
		t.Error("expected error from nil bus")
	}
	if err := b.StartForwarder(context.Background(), func(models.WSMessage) {}); err == nil {
		t.Error("expected error from nil bus")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close on nil bus: %v", err)
	}
}

// TestBus_RoundTrip needs a live server; set REDIS_ADDR to run it
func TestBus_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := "penne:test:" + time.Now().Format("150405.000000")
	pub, err := NewRedisBus(ctx, logger.Discard(), addr, channel)
	if err != nil {
		t.Fatalf("NewRedisBus failed: %v", err)
	}
	defer pub.Close()
	sub, err := NewRedisBus(ctx, logger.Discard(), addr, channel)
	if err != nil {
		t.Fatalf("NewRedisBus failed: %v", err)
	}
	defer sub.Close()

	got := make(chan models.WSMessage, 1)
	if err := sub.StartForwarder(ctx, func(m models.WSMessage) { got <- m }); err != nil {
		t.Fatalf("StartForwarder failed: %v", err)
	}
	if err := pub.Publish(ctx, models.WSMessage{Type: "leaderboard"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case m := <-got:
		if m.Type != "leaderboard" {
			t.Errorf("unexpected message %+v", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("message was not forwarded")
	}
}
