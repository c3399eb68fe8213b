package serve

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

func sampleBroadcastRecord() thought.ThinkingRecord {
	return thought.ThinkingRecord{
		Mode:            "code",
		Strategy:        "majority",
		ModelsQueried:   3,
		ModelsSucceeded: 2,
		Confidence:      0.9,
		Agreement:       0.8,
		Timestamp:       time.Now().UTC(),
	}
}

func TestHubBroadcast(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	t.Cleanup(hub.Close)

	ch, ok := hub.register()
	if !ok {
		t.Fatal("register on open hub failed")
	}

	hub.Broadcast(sampleBroadcastRecord())

	select {
	case payload := <-ch:
		var rec thought.ThinkingRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			t.Fatalf("payload not a record: %v", err)
		}
		if rec.Mode != "code" || rec.ModelsSucceeded != 2 {
			t.Errorf("record = %+v", rec)
		}
	default:
		t.Fatal("client received nothing")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	t.Cleanup(hub.Close)

	ch, ok := hub.register()
	if !ok {
		t.Fatal("register failed")
	}
	// Never drain; the buffer fills and the next broadcast evicts the client.
	for i := 0; i < clientBuffer+1; i++ {
		hub.Broadcast(sampleBroadcastRecord())
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("client count = %d, want slow client dropped", got)
	}
	// The channel was closed; drain until the closed read confirms it.
	for {
		if _, open := <-ch; !open {
			return
		}
	}
}

func TestHubCloseRejectsRegistration(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	hub.Close()
	hub.Close() // idempotent

	if _, ok := hub.register(); ok {
		t.Error("register succeeded on a closed hub")
	}
}

func TestEventsStream(t *testing.T) {
	t.Parallel()
	s := New(&stubThinker{}, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	// Registration happens inside the handler; wait for the client to show up.
	deadline := time.Now().Add(5 * time.Second)
	for s.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Hub().Broadcast(sampleBroadcastRecord())

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var rec thought.ThinkingRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		t.Fatalf("payload not a record: %v", err)
	}
	if rec.Strategy != "majority" {
		t.Errorf("record = %+v", rec)
	}
}

func TestBroadcastSinkChains(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	t.Cleanup(hub.Close)
	ch, _ := hub.register()

	var stored []thought.ThinkingRecord
	sink := BroadcastSink{
		Hub:  hub,
		Next: sinkFunc(func(rec thought.ThinkingRecord) error { stored = append(stored, rec); return nil }),
	}
	if err := sink.Append(sampleBroadcastRecord()); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("next sink saw %d records, want 1", len(stored))
	}
	select {
	case <-ch:
	default:
		t.Error("hub client saw nothing")
	}
}

func TestBroadcastSinkNilNext(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	t.Cleanup(hub.Close)
	sink := BroadcastSink{Hub: hub}
	if err := sink.Append(sampleBroadcastRecord()); err != nil {
		t.Errorf("append with nil next: %v", err)
	}
}

type sinkFunc func(thought.ThinkingRecord) error

func (f sinkFunc) Append(rec thought.ThinkingRecord) error { return f(rec) }
