package button

import "github.com/srg/buttond/internal/transport"

// EventType marks what happened; see the Event field comments for which
// fields are set per type.
type EventType int

const (
	// EventRadioStateChanged fires for every radio transition, including
	// apparent repeats.
	EventRadioStateChanged EventType = iota
	// EventButtonDiscovered fires once per newly seen identifier, after the
	// record was inserted into the registry. This is the application's only
	// chance to immediately forget a button before it stays known.
	EventButtonDiscovered
	// EventRestorationComplete fires exactly once per restored manager, after
	// every persisted record was reconstructed to at least PhasePendingConnect.
	EventRestorationComplete
	// EventForgetCompleted fires once per ForgetButton call. Err carries the
	// persistence failure if the removal could not be made durable.
	EventForgetCompleted
	// EventButtonConnected fires when a button reaches PhaseConnected, after
	// a verified handshake.
	EventButtonConnected
	// EventButtonDisconnected fires when an established connection drops or
	// is torn down.
	EventButtonDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventRadioStateChanged:
		return "radioStateChanged"
	case EventButtonDiscovered:
		return "buttonDiscovered"
	case EventRestorationComplete:
		return "restorationComplete"
	case EventForgetCompleted:
		return "forgetCompleted"
	case EventButtonConnected:
		return "buttonConnected"
	case EventButtonDisconnected:
		return "buttonDisconnected"
	default:
		return "unknown"
	}
}

// Event is one notification from the manager. Events for a single button are
// delivered in the order the transitions occurred; events across different
// buttons carry no relative ordering guarantee.
type Event struct {
	Type EventType

	// RadioState is set for EventRadioStateChanged.
	RadioState transport.RadioState

	// Button is set for button-scoped events. It is the same stable
	// reference returned by KnownButtons. Nil for EventForgetCompleted,
	// whose button object is already torn down.
	Button *Button

	// Identifier is set for every button-scoped event, including
	// EventForgetCompleted.
	Identifier Identifier

	// RSSI is the measured signal strength for EventButtonDiscovered.
	RSSI int

	// Err is set on EventForgetCompleted when persisting the removal failed.
	Err error
}
