package upload

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/hanger/internal/bus"
)

// Phase is the state of one upload request.
type Phase string

const (
	Primary   Phase = "PRIMARY"
	Fallback  Phase = "FALLBACK"
	Succeeded Phase = "SUCCEEDED"
	Failed    Phase = "FAILED"
)

// validTransitions defines allowed phase transitions. Any unsuccessful end of
// the primary phase leads to the fallback phase; only the fallback can fail.
var validTransitions = map[Phase][]Phase{
	Primary:  {Succeeded, Fallback},
	Fallback: {Succeeded, Failed},
}

func (p Phase) label() string {
	return strings.ToLower(string(p))
}

// PhaseChange is the payload of upload.phase_changed events.
type PhaseChange struct {
	UploadID string
	From     Phase
	To       Phase
}

// Attempt is the payload of upload.retry_scheduled events. It describes the
// failed attempt and the wait before the next one.
type Attempt struct {
	UploadID string
	Phase    Phase
	Number   int
	Delay    time.Duration
	Waited   time.Duration
	Err      error
}

// machine tracks the phase of a single upload. It is owned by one goroutine.
type machine struct {
	uploadID string
	current  Phase
	bus      *bus.Bus
}

func newMachine(uploadID string, b *bus.Bus) *machine {
	return &machine{uploadID: uploadID, current: Primary, bus: b}
}

func (m *machine) transition(to Phase) error {
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid upload transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.UploadPhaseChanged,
			Timestamp: time.Now(),
			Payload:   PhaseChange{UploadID: m.uploadID, From: from, To: to},
		})
	}
	return nil
}
