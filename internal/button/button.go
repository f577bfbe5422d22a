package button

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// Identifier is the 128-bit stable identity of a physical button. It is
// assigned at first discovery and never changes for the lifetime of the
// pairing relationship.
type Identifier [16]byte

// IdentifierFromAddr derives the identifier for a transport address. The
// derivation is deterministic so the same physical button maps to the same
// identifier across scans and process restarts.
func IdentifierFromAddr(addr string) Identifier {
	var id Identifier
	sum := sha256.Sum256([]byte(strings.ToLower(addr)))
	copy(id[:], sum[:16])
	return id
}

// ParseIdentifier parses the canonical 8-4-4-4-12 text form.
func ParseIdentifier(s string) (Identifier, error) {
	var id Identifier
	cleaned := strings.ReplaceAll(strings.ToLower(s), "-", "")
	if len(cleaned) != 32 {
		return id, fmt.Errorf("invalid button identifier %q", s)
	}
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return id, fmt.Errorf("invalid button identifier %q: %w", s, err)
	}
	copy(id[:], raw)
	return id, nil
}

func (id Identifier) String() string {
	h := hex.EncodeToString(id[:])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

// MarshalText implements encoding.TextMarshaler so identifiers serialize in
// canonical text form, including as JSON object keys.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentifier(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ConnectionIntent records whether the manager should keep trying to reach a
// button whenever the radio allows it. Intent is persisted and survives both
// process restarts and enable/disable cycles.
type ConnectionIntent int

const (
	IntentNone ConnectionIntent = iota
	IntentWantConnected
)

func (i ConnectionIntent) String() string {
	if i == IntentWantConnected {
		return "wantConnected"
	}
	return "none"
}

// Phase is the live connection lifecycle state of one button.
type Phase int

const (
	// PhaseDisconnected is the initial phase after discovery.
	PhaseDisconnected Phase = iota
	// PhasePendingConnect means a connect is wanted and will start as soon
	// as the radio is powered on and the manager is enabled.
	PhasePendingConnect
	// PhaseConnecting means a transport connect plus handshake is in flight.
	PhaseConnecting
	// PhaseConnected means the transport link is up and the handshake
	// verified the peripheral.
	PhaseConnected
	// PhaseForgotten is terminal; the button was explicitly removed and its
	// identifier is free for re-discovery.
	PhaseForgotten
)

func (p Phase) String() string {
	switch p {
	case PhasePendingConnect:
		return "pendingConnect"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseForgotten:
		return "forgotten"
	default:
		return "disconnected"
	}
}

// Record is the persisted form of one known button.
type Record struct {
	Identifier      Identifier       `json:"identifier"`
	Address         string           `json:"address"`
	Intent          ConnectionIntent `json:"intent"`
	Verified        bool             `json:"verified"`
	Name            string           `json:"name,omitempty"`
	FirmwareVersion string           `json:"firmware_version,omitempty"`
	LastKnownRSSI   *int             `json:"last_known_rssi,omitempty"`
}

// Button is the live, application-visible object for one known button. The
// manager hands out a single stable *Button per identifier, so state reads
// always observe the current truth. A Button whose phase reached
// PhaseForgotten must not be used again.
type Button struct {
	mgr *Manager

	mu    sync.RWMutex
	rec   Record
	phase Phase
}

// Identifier returns the stable identity of the button.
func (b *Button) Identifier() Identifier {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rec.Identifier
}

// Address returns the transport address the button advertises from.
func (b *Button) Address() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rec.Address
}

// Phase returns the current lifecycle phase.
func (b *Button) Phase() Phase {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.phase
}

// Intent returns the persisted connection intent.
func (b *Button) Intent() ConnectionIntent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rec.Intent
}

// Verified reports whether the button has completed at least one successful
// handshake. A discovered-but-never-connected button is not verified and is
// not guaranteed to be a genuine device of this class.
func (b *Button) Verified() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rec.Verified
}

// Name returns the descriptive name, populated after the first successful
// connection. Empty until then.
func (b *Button) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rec.Name
}

// FirmwareVersion returns the firmware version reported by the handshake.
func (b *Button) FirmwareVersion() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rec.FirmwareVersion
}

// LastKnownRSSI returns the most recent advertisement signal strength, or
// false if none was ever recorded. Informational only.
func (b *Button) LastKnownRSSI() (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.rec.LastKnownRSSI == nil {
		return 0, false
	}
	return *b.rec.LastKnownRSSI, true
}

// Record returns a copy of the persisted state.
func (b *Button) Record() Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec := b.rec
	if b.rec.LastKnownRSSI != nil {
		rssi := *b.rec.LastKnownRSSI
		rec.LastKnownRSSI = &rssi
	}
	return rec
}

// Connect sets the connection intent to IntentWantConnected and lets the
// manager pursue the connection whenever the radio allows. It never blocks on
// the radio: if the radio is unavailable or the manager is disabled, the
// button simply stays pending.
func (b *Button) Connect() error {
	return b.mgr.setIntent(b, IntentWantConnected)
}

// Disconnect clears the connection intent and tears down any in-flight or
// established connection.
func (b *Button) Disconnect() error {
	return b.mgr.setIntent(b, IntentNone)
}

// snapshot returns the record under the read lock. Loop-internal.
func (b *Button) snapshot() Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rec
}

func (b *Button) setPhase(p Phase) {
	b.mu.Lock()
	b.phase = p
	b.mu.Unlock()
}

func (b *Button) setIntent(i ConnectionIntent) {
	b.mu.Lock()
	b.rec.Intent = i
	b.mu.Unlock()
}

func (b *Button) setRSSI(rssi int) {
	b.mu.Lock()
	b.rec.LastKnownRSSI = &rssi
	b.mu.Unlock()
}

func (b *Button) markVerified(name, firmware string) {
	b.mu.Lock()
	b.rec.Verified = true
	if name != "" {
		b.rec.Name = name
	}
	if firmware != "" {
		b.rec.FirmwareVersion = firmware
	}
	b.mu.Unlock()
}
