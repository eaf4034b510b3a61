package web

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/mailmerge/internal/dispatcher"
)

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client1 := &Client{hub: hub, send: make(chan []byte, 256)}
	hub.register <- client1

	client2 := &Client{hub: hub, send: make(chan []byte, 256)}
	hub.register <- client2

	msg := map[string]string{"type": "run.progress", "status": "SENT"}
	msgBytes, _ := json.Marshal(msg)
	hub.Broadcast(msg)

	select {
	case received := <-client1.send:
		assert.Equal(t, msgBytes, received)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Client 1 did not receive message")
	}

	select {
	case received := <-client2.send:
		assert.Equal(t, msgBytes, received)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Client 2 did not receive message")
	}

	hub.unregister <- client1

	msg2 := []byte("second message")
	hub.Broadcast(msg2)

	select {
	case msg, ok := <-client1.send:
		if ok {
			t.Fatalf("Client 1 received message after unregister: %s", msg)
		}
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case received := <-client2.send:
		assert.Equal(t, msg2, received)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Client 2 did not receive second message")
	}
}

// recordingHub captures broadcasts.
type recordingHub struct {
	messages []any
}

func (r *recordingHub) Broadcast(message any) { r.messages = append(r.messages, message) }

func TestHubNotifier(t *testing.T) {
	rec := &recordingHub{}
	n := NewHubNotifier(rec)
	id := uuid.New()

	n.RunProgress(context.Background(), dispatcher.Progress{RunID: id, Processed: 1, Requested: 4, Percent: 25})
	n.RunFinished(context.Background(), &dispatcher.Outcome{RunID: id, Requested: 4, Processed: 4})

	require.Len(t, rec.messages, 2)

	progress := rec.messages[0].(WSEvent)
	assert.Equal(t, EventRunProgress, progress.Type)
	assert.Equal(t, 25.0, progress.Payload.(dispatcher.Progress).Percent)

	finished := rec.messages[1].(WSEvent)
	assert.Equal(t, EventRunFinished, finished.Type)
	assert.Equal(t, id, finished.Payload.(dispatcher.Summary).RunID)
}

func TestHub_RegistrationAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()
	hub.Stop()
	<-stopped

	client := &Client{hub: hub, send: make(chan []byte, 1)}

	done := make(chan bool)
	go func() {
		ok := hub.registerClient(client)
		hub.unregisterClient(client)
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked after Stop")
	}
}
