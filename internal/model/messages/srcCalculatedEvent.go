package messages

import "time"

// SRCCalculatedEvent is published by the calculator after every successful calculation.
type SRCCalculatedEvent struct {
	EventID   string    `json:"event_id"`
	Source    string    `json:"source"`
	SH        float64   `json:"sh"`
	K1        float64   `json:"k1"`
	K2        float64   `json:"k2"`
	Qnp       float64   `json:"qnp"`
	Hnp       float64   `json:"hnp"`
	Qact      float64   `json:"qact"`
	Hact      float64   `json:"hact"`
	Points    int       `json:"points"`
	HasQH     bool      `json:"has_qh"`
	Timestamp time.Time `json:"timestamp"`
}
