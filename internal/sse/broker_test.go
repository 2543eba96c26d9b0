package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: KindDrift, Data: map[string]string{"path": "proj/current"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: pointer.drift") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"proj/current"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishVersionEvent(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishVersionEvent(KindActivated, "proj", "1.2")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: version.activated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"project_id":"proj"`) || !strings.Contains(s, `"version":"1.2"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishVersionEvent(KindCut, "proj", "1.0")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: version.cut") {
		t.Errorf("handler body missing event: %q", body)
	}
}
