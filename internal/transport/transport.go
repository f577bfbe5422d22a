// Package transport defines the radio-facing contract of the button manager.
//
// Implementations own the actual BLE stack (go-ble, tinygo bluetooth); the
// manager only ever talks to these interfaces, which keeps the state machine
// testable with a fake transport.
package transport

import "context"

// RadioState mirrors the host adapter power/authorization state.
type RadioState int

const (
	// RadioUnknown is the initial state until the stack reports otherwise.
	RadioUnknown RadioState = iota
	// RadioResetting means the stack is restarting and will settle shortly.
	RadioResetting
	// RadioUnsupported means the host has no usable BLE hardware.
	RadioUnsupported
	// RadioUnauthorized means the process may not use BLE.
	RadioUnauthorized
	// RadioPoweredOff means the adapter is present but turned off.
	RadioPoweredOff
	// RadioPoweredOn is the only state in which radio operations are allowed.
	RadioPoweredOn
)

func (s RadioState) String() string {
	switch s {
	case RadioResetting:
		return "resetting"
	case RadioUnsupported:
		return "unsupported"
	case RadioUnauthorized:
		return "unauthorized"
	case RadioPoweredOff:
		return "poweredOff"
	case RadioPoweredOn:
		return "poweredOn"
	default:
		return "unknown"
	}
}

// Advertisement is a single received broadcast from an un-connected button.
type Advertisement struct {
	Addr string // transport-level address (MAC or platform UUID)
	Name string // advertised local name, may be empty
	RSSI int    // signal strength at the receiver, dBm
}

// Metadata is what a successful application-layer handshake returns. Only a
// verified handshake proves the peripheral is a genuine button.
type Metadata struct {
	Name            string
	FirmwareVersion string
}

// Credentials identify the application to the button firmware during the
// handshake. Provisioning of these strings is outside this package.
type Credentials struct {
	AppID     string
	AppSecret string
}

// Connection is an established transport-level link to one button.
type Connection interface {
	// Handshake runs the application-layer exchange that verifies the
	// peripheral. A connection whose handshake fails must be treated as a
	// failed connection.
	Handshake(ctx context.Context, creds Credentials) (*Metadata, error)

	// Disconnect tears the link down. Idempotent.
	Disconnect() error

	// OnDisconnect registers a callback fired once when the link drops for
	// any reason, including a local Disconnect.
	OnDisconnect(fn func())
}

// Transport is the abstract BLE stack the manager drives.
type Transport interface {
	// Scan delivers advertisements to handler until ctx is cancelled.
	// Implementations may invoke handler from their own goroutine; callers
	// are responsible for serialization.
	Scan(ctx context.Context, handler func(Advertisement)) error

	// Connect establishes a link to the button at addr.
	Connect(ctx context.Context, addr string) (Connection, error)

	// RadioStates returns the adapter state stream. The current state is
	// delivered first, then every transition, including repeats.
	RadioStates() <-chan RadioState
}
