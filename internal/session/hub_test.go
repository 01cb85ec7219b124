package session

import (
	"encoding/json"
	"testing"
	"time"
)

func readMessage(t *testing.T, c *Client, typ string) *Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed waiting for %q", typ)
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatal(err)
			}
			if msg.Type == typ {
				return &msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", typ)
		}
	}
}

func TestHubSessionLifecycle(t *testing.T) {
	loader := newFakeLoader()
	loader.add("asset_a", 10, 10)
	h := NewHub(loader, &fakeSaver{})
	go h.Run()
	defer h.Stop()

	c1 := NewClient(h, nil, "sess_1", "c1")
	if !h.Register(c1) {
		t.Fatal("register failed")
	}
	<-c1.joined
	welcome := readMessage(t, c1, TypeWelcome)
	if welcome.SessionID != "sess_1" {
		t.Errorf("welcome session = %q", welcome.SessionID)
	}

	c2 := NewClient(h, nil, "sess_1", "c2")
	h.Register(c2)
	<-c2.joined
	readMessage(t, c1, TypePeerJoin)

	payload, _ := json.Marshal(ImageLoadPayload{AssetID: "asset_a"})
	h.handleMessage(c2, &Message{Type: TypeImageLoad, Payload: payload})
	readMessage(t, c1, TypeImageLoaded)
	readMessage(t, c2, TypeImageLoaded)

	sess, ok := h.Session("sess_1")
	if !ok {
		t.Fatal("session missing")
	}

	h.Unregister(c1)
	h.Unregister(c2)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := h.Session("sess_1"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session not closed after last client left")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if sess.ctx.Err() == nil {
		t.Error("closed session context still live")
	}

	// Sending to a departed client is a no-op.
	c1.Send(&Message{Type: TypeState})
}

func TestHubSeparatesSessions(t *testing.T) {
	h := NewHub(newFakeLoader(), &fakeSaver{})
	go h.Run()
	defer h.Stop()

	a := NewClient(h, nil, "sess_a", "a")
	b := NewClient(h, nil, "sess_b", "b")
	h.Register(a)
	h.Register(b)
	<-a.joined
	<-b.joined
	readMessage(t, a, TypeWelcome)
	readMessage(t, b, TypeWelcome)

	sa, _ := h.Session("sess_a")
	sb, _ := h.Session("sess_b")
	if sa == nil || sb == nil || sa == sb {
		t.Fatalf("sessions = %p %p", sa, sb)
	}
}

func TestHubStopRejectsRegister(t *testing.T) {
	h := NewHub(newFakeLoader(), &fakeSaver{})
	go h.Run()
	h.Stop()

	if h.Register(NewClient(h, nil, "sess_x", "x")) {
		t.Error("stopped hub accepted a client")
	}
}
