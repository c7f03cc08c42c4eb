package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/redis/go-redis/v9"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_PublishOrder(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("schedule:t1")
	defer cancel()

	for _, typ := range []string{"a", "b", "c"} {
		if err := hub.Publish(t.Context(), Event{Topic: "schedule:t1", Type: typ}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		if got := recv(t, events).Type; got != want {
			t.Fatalf("event type = %q, want %q", got, want)
		}
	}
}

func TestHub_TopicIsolation(t *testing.T) {
	hub := NewHub()
	mine, cancelMine := hub.Subscribe("forum")
	defer cancelMine()
	other, cancelOther := hub.Subscribe("schedule:t2")
	defer cancelOther()

	hub.Publish(t.Context(), Event{Topic: "forum", Type: "post.created"})

	recv(t, mine)
	select {
	case ev := <-other:
		t.Fatalf("unexpected event on other topic: %+v", ev)
	default:
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("forum")
	if hub.Subscribers("forum") != 1 {
		t.Fatalf("Subscribers() = %d, want 1", hub.Subscribers("forum"))
	}

	cancel()
	cancel()

	if hub.Subscribers("forum") != 0 {
		t.Errorf("Subscribers() = %d, want 0", hub.Subscribers("forum"))
	}
	if _, ok := <-events; ok {
		t.Error("channel should be closed after cancel")
	}
	if err := hub.Publish(t.Context(), Event{Topic: "forum"}); err != nil {
		t.Errorf("Publish() with no subscribers error = %v", err)
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("forum")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBuffer*2; i++ {
			hub.Publish(t.Context(), Event{Topic: "forum", Type: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestHub_PublishRequiresTopic(t *testing.T) {
	if err := NewHub().Publish(t.Context(), Event{}); err == nil {
		t.Fatal("Publish() should reject an empty topic")
	}
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("tier:u1", "profile", map[string]int{"aiUsageCount": 3})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if ev.At.IsZero() {
		t.Error("At should be set")
	}
	var data map[string]int
	if err := json.Unmarshal(ev.Data, &data); err != nil || data["aiUsageCount"] != 3 {
		t.Errorf("Data = %s, err = %v", ev.Data, err)
	}

	if _, err := NewEvent("x", "bad", make(chan int)); err == nil {
		t.Error("NewEvent() should fail on unmarshalable data")
	}
}

func TestNotify(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe("forum")
	defer cancel()

	Notify(t.Context(), hub, "forum", "post.deleted", map[string]string{"id": "p1"})
	if got := recv(t, events).Type; got != "post.deleted" {
		t.Errorf("type = %q, want post.deleted", got)
	}

	// A nil publisher is tolerated.
	Notify(t.Context(), nil, "forum", "x", nil)
}

func TestServeWS(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("topic"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?topic=forum"
	conn, _, err := websocket.Dial(t.Context(), url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("forum") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	Notify(t.Context(), hub, "forum", "reply.created", map[string]string{"id": "r1"})

	var ev Event
	if err := wsjson.Read(t.Context(), conn, &ev); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if ev.Topic != "forum" || ev.Type != "reply.created" {
		t.Errorf("event = %+v", ev)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestRedisBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}
	url := os.Getenv("PLANIM_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PLANIM_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL() error = %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	hub := NewHub()
	broker := NewRedisBroker(client, hub)
	events, cancel := hub.Subscribe("schedule:t1")
	defer cancel()

	go broker.Run(t.Context())
	// Give the relay time to subscribe.
	time.Sleep(200 * time.Millisecond)

	if err := broker.Publish(t.Context(), Event{Topic: "schedule:t1", Type: "schedule.updated"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := recv(t, events).Type; got != "schedule.updated" {
		t.Errorf("type = %q, want schedule.updated", got)
	}
}
