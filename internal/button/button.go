// Package button classifies physical button presses. The GPIO edge layer
// reports press durations; the core only consumes the classified event.
package button

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type PressKind int

const (
	PressShort PressKind = iota
	PressLong
)

// Handler turns press durations into short/long events and dispatches them.
type Handler struct {
	Log       *log.Entry
	LongPress time.Duration // threshold; presses at or above are long

	OnShort func()
	OnLong  func()
}

// Classify maps a press duration onto a press kind.
func (h *Handler) Classify(duration time.Duration) PressKind {
	threshold := h.LongPress
	if threshold == 0 {
		threshold = 3 * time.Second
	}
	if duration >= threshold {
		return PressLong
	}
	return PressShort
}

// Press handles one completed press of the given duration.
func (h *Handler) Press(duration time.Duration) {
	switch h.Classify(duration) {
	case PressLong:
		h.Log.WithField("duration", duration.Round(100*time.Millisecond)).Info("Long press")
		if h.OnLong != nil {
			h.OnLong()
		}
	default:
		h.Log.WithField("duration", duration.Round(100*time.Millisecond)).Info("Short press")
		if h.OnShort != nil {
			h.OnShort()
		}
	}
}
