package web

import (
	"context"

	"github.com/blockedby/mailmerge/internal/dispatcher"
)

// WebSocket event types
const (
	EventRunProgress = "run.progress"
	EventRunFinished = "run.finished"
)

// WSEvent represents a structured WebSocket message
type WSEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Broadcaster is satisfied by *Hub.
type Broadcaster interface {
	Broadcast(message any)
}

// HubNotifier forwards run events to websocket clients.
type HubNotifier struct {
	hub Broadcaster
}

// NewHubNotifier creates a dispatcher.Notifier backed by the hub.
func NewHubNotifier(hub Broadcaster) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// RunProgress broadcasts a progress event.
func (n *HubNotifier) RunProgress(_ context.Context, p dispatcher.Progress) {
	n.hub.Broadcast(WSEvent{Type: EventRunProgress, Payload: p})
}

// RunFinished broadcasts the run summary.
func (n *HubNotifier) RunFinished(_ context.Context, out *dispatcher.Outcome) {
	n.hub.Broadcast(WSEvent{Type: EventRunFinished, Payload: out.Summary()})
}
