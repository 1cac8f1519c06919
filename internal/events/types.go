package events

import (
	"time"

	"github.com/callveil/callveil/internal/redact"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeDetection represents a redaction summary event
	EventTypeDetection EventType = "detection"
	// EventTypeProgress represents a batch pipeline progress event
	EventTypeProgress EventType = "progress"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// DetectionEvent summarizes what was redacted in one transcript. Only
// category counts are broadcast, never original values or placeholders.
type DetectionEvent struct {
	CallID        string           `json:"call_id,omitempty"`
	Findings      []redact.Finding `json:"findings"`
	TotalFindings int              `json:"total_findings"`
	ProcessingMS  float64          `json:"processing_ms"`
}

// ProgressEvent reports batch pipeline progress
type ProgressEvent struct {
	Processed  int     `json:"processed"`
	Failed     int     `json:"failed"`
	Remaining  int     `json:"remaining"`
	RatePerMin float64 `json:"rate_per_min,omitempty"`
	LastCallID string  `json:"last_call_id,omitempty"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}
