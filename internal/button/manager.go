// Package button implements the manager for single-button BLE peripherals:
// discovery, pairing-state tracking, per-button connection lifecycle and the
// durable registry of known buttons across process restarts.
package button

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/buttond/internal/registry"
	"github.com/srg/buttond/internal/ringchan"
	"github.com/srg/buttond/internal/transport"
)

const (
	// DefaultMinAllowedRSSI accepts every advertisement. Values outside
	// [-100, 0] are silently corrected back to this.
	DefaultMinAllowedRSSI = -100

	defaultEventBuffer    = 64
	defaultConnectTimeout = 30 * time.Second
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Options configures a Manager.
type Options struct {
	// Transport is the BLE stack to drive. Required.
	Transport transport.Transport

	// RegistryPath is the durable registry file. Required.
	RegistryPath string

	// Restore loads the persisted registry and reconstructs a state machine
	// per record; buttons with a pending connection come back pending. When
	// false any previously persisted registry is irreversibly cleared.
	Restore bool

	// Credentials are passed to the transport handshake.
	Credentials transport.Credentials

	Logger *logrus.Logger

	// EventBuffer bounds the event stream; the oldest event is dropped when
	// the application falls behind. Default 64.
	EventBuffer int

	// ConnectTimeout bounds one transport connect plus handshake. Default 30s.
	ConnectTimeout time.Duration

	// InitialBackoff and MaxBackoff bound the retry delay for failed
	// connect attempts. Defaults 1s and 30s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Manager owns the scan pipeline, the radio state, the per-button state
// machines and the durable registry. It is the single entry point application
// code talks to for this device class.
//
// All mutations are serialized through one loop goroutine, so transport
// callbacks never race application calls. Create exactly one Manager per
// process from your composition root; the single-instance constraint is the
// caller's responsibility, not hidden global state.
type Manager struct {
	logger *logrus.Logger
	tr     transport.Transport
	creds  transport.Credentials
	store  *registry.Store[Record]

	buttons   *hashmap.Map[string, *Button]
	events    *ringchan.RingChannel[Event]
	cmds      chan func()
	closed    chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	enabled atomic.Bool
	radio   atomic.Int32
	minRSSI atomic.Int32

	connectTimeout time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// Loop-owned; never touched outside the run goroutine.
	machines   map[Identifier]*machine
	scanning   bool
	scanGen    uint64
	scanCancel context.CancelFunc
}

// NewManager creates the manager, reconstructs persisted buttons when
// opts.Restore is set, and starts the event loop. A restored manager emits
// EventRestorationComplete once every reconstructed machine has reached at
// least PhasePendingConnect.
func NewManager(opts Options) (*Manager, error) {
	if opts.Transport == nil {
		return nil, errors.New("button: Options.Transport is required")
	}
	if opts.RegistryPath == "" {
		return nil, errors.New("button: Options.RegistryPath is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}

	store, err := registry.Open[Record](opts.RegistryPath, logger)
	if err != nil {
		return nil, err
	}
	if !opts.Restore {
		if err := store.Reset(); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		logger:         logger,
		tr:             opts.Transport,
		creds:          opts.Credentials,
		store:          store,
		buttons:        hashmap.New[string, *Button](),
		events:         ringchan.New[Event](opts.EventBuffer),
		cmds:           make(chan func(), 64),
		closed:         make(chan struct{}),
		loopDone:       make(chan struct{}),
		connectTimeout: opts.ConnectTimeout,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		machines:       make(map[Identifier]*machine),
	}
	m.enabled.Store(true)
	m.minRSSI.Store(DefaultMinAllowedRSSI)
	m.radio.Store(int32(transport.RadioUnknown))

	// Persisted records are ground truth; live state converges toward the
	// persisted intent once the radio confirms powered-on.
	restored := 0
	store.Range(func(key string, rec Record) bool {
		b := &Button{mgr: m, rec: rec, phase: PhaseDisconnected}
		if rec.Intent == IntentWantConnected {
			b.phase = PhasePendingConnect
		}
		m.machines[rec.Identifier] = &machine{btn: b, backoff: m.initialBackoff}
		m.buttons.Set(key, b)
		restored++
		return true
	})

	if opts.Restore {
		m.logger.WithField("buttons", restored).Info("Button registry restored")
		m.cmds <- func() {
			m.emit(Event{Type: EventRestorationComplete})
		}
	}

	go m.run()
	return m, nil
}

// Events returns the manager notification stream. Events for a single button
// arrive in transition order; a slow consumer loses the oldest events first.
func (m *Manager) Events() <-chan Event {
	return m.events.C()
}

// RadioState returns the last reported radio state, RadioUnknown until the
// transport reports otherwise.
func (m *Manager) RadioState() transport.RadioState {
	return transport.RadioState(m.radio.Load())
}

// Enabled reports the master switch, independent of radio hardware state.
func (m *Manager) Enabled() bool {
	return m.enabled.Load()
}

// MinAllowedRSSI returns the inclusive discovery signal floor.
func (m *Manager) MinAllowedRSSI() int {
	return int(m.minRSSI.Load())
}

// SetMinAllowedRSSI sets the discovery signal floor. Values outside [-100, 0]
// are silently corrected back to -100, never rejected.
func (m *Manager) SetMinAllowedRSSI(rssi int) {
	if rssi < -100 || rssi > 0 {
		rssi = DefaultMinAllowedRSSI
	}
	m.minRSSI.Store(int32(rssi))
}

// KnownButtons returns every button ever discovered and not forgotten, keyed
// by identifier. The *Button values are live references, never snapshots.
func (m *Manager) KnownButtons() map[Identifier]*Button {
	out := make(map[Identifier]*Button, m.buttons.Len())
	m.buttons.Range(func(_ string, b *Button) bool {
		out[b.Identifier()] = b
		return true
	})
	return out
}

// StartScan begins continuous discovery. It is a silent no-op while a scan is
// already running, the manager is disabled, or the radio is not powered on;
// callers check state proactively but are never penalized for racing it.
func (m *Manager) StartScan() error {
	return m.do(func() { m.startScanLocked() })
}

// StopScan halts discovery. Redundant calls are no-ops. No discovery event
// for the stopped scan fires after StopScan returns.
func (m *Manager) StopScan() error {
	return m.do(func() { m.stopScanLocked() })
}

// Enable lifts the master switch. It does not itself reconnect anything:
// buttons whose persisted intent is IntentWantConnected re-evaluate once the
// radio confirms powered-on and resume on their own.
func (m *Manager) Enable() error {
	return m.do(func() {
		if m.enabled.Load() {
			return
		}
		m.enabled.Store(true)
		m.logger.Info("Button manager enabled")
		if m.RadioState() == transport.RadioPoweredOn {
			m.resyncPending()
		}
	})
}

// Disable halts any active scan and forces every machine out of its
// connecting/connected state without touching connection intent, so a later
// Enable resumes autonomous reconnects without application intervention.
func (m *Manager) Disable() error {
	return m.do(func() {
		if !m.enabled.Load() {
			return
		}
		m.enabled.Store(false)
		m.stopScanLocked()

		for _, mc := range m.machines {
			b := mc.btn
			phase := b.Phase()
			if phase == PhaseDisconnected || phase == PhaseForgotten {
				continue
			}
			m.teardown(mc)
			b.setPhase(PhaseDisconnected)
			if phase == PhaseConnected {
				m.emit(Event{Type: EventButtonDisconnected, Button: b, Identifier: b.Identifier()})
			}
		}
		m.logger.Info("Button manager disabled")
	})
}

// ForgetButton disconnects the button if needed, removes it from the registry
// and frees its identifier for fresh discovery. The removal proceeds
// in-memory even when persistence fails; the failure is carried on the
// EventForgetCompleted event and reconciled on next startup.
func (m *Manager) ForgetButton(id Identifier) error {
	var err error
	if derr := m.do(func() { err = m.forgetLocked(id) }); derr != nil {
		return derr
	}
	return err
}

// Close stops the loop and tears down every machine. The event stream is
// closed once no further event can fire.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		done := make(chan struct{})
		m.cmds <- func() {
			m.stopScanLocked()
			for _, mc := range m.machines {
				m.teardown(mc)
			}
			close(done)
		}
		<-done
		close(m.closed)
		<-m.loopDone
		m.events.Close()
	})
	return nil
}

// ----------------------------
// Loop
// ----------------------------

func (m *Manager) run() {
	defer close(m.loopDone)

	radio := m.tr.RadioStates()
	for {
		select {
		case <-m.closed:
			return
		case fn := <-m.cmds:
			fn()
		case st, ok := <-radio:
			if !ok {
				radio = nil
				continue
			}
			m.handleRadioState(st)
		}
	}
}

// do runs fn on the manager loop and waits for completion, serializing API
// calls with transport callbacks.
func (m *Manager) do(fn func()) error {
	done := make(chan struct{})
	select {
	case m.cmds <- func() { fn(); close(done) }:
	case <-m.closed:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-m.loopDone:
		return ErrClosed
	}
}

// post queues fn without waiting. Used from transport goroutines and timers;
// dropped silently once the manager is closed.
func (m *Manager) post(fn func()) {
	select {
	case m.cmds <- fn:
	case <-m.closed:
	}
}

func (m *Manager) emit(ev Event) {
	if m.events.Send(ev) {
		m.logger.WithField("event", ev.Type.String()).Warn("Event consumer too slow, oldest event dropped")
	}
}

func (m *Manager) persist(b *Button) {
	rec := b.snapshot()
	if err := m.store.Upsert(rec.Identifier.String(), rec); err != nil {
		m.logger.WithError(err).WithField("button", rec.Identifier.String()).Warn("Failed to persist button record")
	}
}

// ----------------------------
// Radio
// ----------------------------

func (m *Manager) handleRadioState(st transport.RadioState) {
	m.radio.Store(int32(st))
	m.logger.WithField("state", st.String()).Info("Radio state changed")
	m.emit(Event{Type: EventRadioStateChanged, RadioState: st})

	// Resynchronization rule: entering powered-on moves every machine whose
	// intent is still WantConnected back to pending, clearing connection
	// state that went stale while the radio was unavailable.
	if st == transport.RadioPoweredOn && m.enabled.Load() {
		m.resyncPending()
	}
}

func (m *Manager) resyncPending() {
	for _, mc := range m.machines {
		b := mc.btn
		if b.Intent() != IntentWantConnected || b.Phase() == PhaseForgotten {
			continue
		}
		wasConnected := b.Phase() == PhaseConnected
		m.teardown(mc)
		mc.backoff = m.initialBackoff
		b.setPhase(PhasePendingConnect)
		if wasConnected {
			// The stale link is gone; the application must observe the
			// disconnect before any reconnect event for this button.
			m.emit(Event{Type: EventButtonDisconnected, Button: b, Identifier: b.Identifier()})
		}
		m.evaluate(mc)
	}
}

// ----------------------------
// Scanning
// ----------------------------

func (m *Manager) startScanLocked() {
	if m.scanning || !m.enabled.Load() || m.RadioState() != transport.RadioPoweredOn {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.scanCancel = cancel
	m.scanning = true
	m.scanGen++
	gen := m.scanGen

	m.logger.Info("Starting button scan")
	go func() {
		err := m.tr.Scan(ctx, func(adv transport.Advertisement) {
			m.post(func() { m.handleAdvertisement(gen, adv) })
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.WithError(err).Warn("Button scan terminated")
		}
		m.post(func() {
			if m.scanGen == gen {
				m.scanning = false
				m.scanCancel = nil
			}
		})
	}()
}

func (m *Manager) stopScanLocked() {
	if !m.scanning {
		return
	}
	m.scanCancel()
	m.scanCancel = nil
	m.scanning = false
	// Advertisements still queued from the stopped scan carry the old
	// generation and are ignored.
	m.scanGen++
	m.logger.Info("Button scan stopped")
}

func (m *Manager) handleAdvertisement(gen uint64, adv transport.Advertisement) {
	if gen != m.scanGen || !m.scanning {
		return
	}
	if adv.RSSI < int(m.minRSSI.Load()) {
		return
	}

	id := IdentifierFromAddr(adv.Addr)
	key := id.String()

	// A tracked identifier is never re-discovered; it only becomes eligible
	// again after an explicit forget frees its slot.
	if b, ok := m.buttons.Get(key); ok {
		b.setRSSI(adv.RSSI)
		return
	}

	rssi := adv.RSSI
	rec := Record{
		Identifier:    id,
		Address:       adv.Addr,
		Intent:        IntentNone,
		LastKnownRSSI: &rssi,
	}
	b := &Button{mgr: m, rec: rec, phase: PhaseDisconnected}
	m.machines[id] = &machine{btn: b, backoff: m.initialBackoff}
	m.buttons.Set(key, b)
	if err := m.store.Upsert(key, rec); err != nil {
		m.logger.WithError(err).WithField("button", key).Warn("Failed to persist discovered button")
	}

	m.logger.WithFields(logrus.Fields{
		"button":  key,
		"address": adv.Addr,
		"rssi":    adv.RSSI,
	}).Info("Discovered new button")
	m.emit(Event{Type: EventButtonDiscovered, Button: b, Identifier: id, RSSI: adv.RSSI})
}

// ----------------------------
// Intent and forget
// ----------------------------

func (m *Manager) setIntent(b *Button, intent ConnectionIntent) error {
	var err error
	if derr := m.do(func() {
		if b.Phase() == PhaseForgotten {
			err = fmt.Errorf("%w: %s", ErrForgotten, b.Identifier())
			return
		}
		mc, ok := m.machines[b.Identifier()]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownButton, b.Identifier())
			return
		}

		b.setIntent(intent)
		m.persist(b)

		if intent == IntentWantConnected {
			if b.Phase() == PhaseDisconnected {
				mc.backoff = m.initialBackoff
				b.setPhase(PhasePendingConnect)
			}
			m.evaluate(mc)
			return
		}

		wasConnected := b.Phase() == PhaseConnected
		m.teardown(mc)
		b.setPhase(PhaseDisconnected)
		if wasConnected {
			m.emit(Event{Type: EventButtonDisconnected, Button: b, Identifier: b.Identifier()})
		}
	}); derr != nil {
		return derr
	}
	return err
}

func (m *Manager) forgetLocked(id Identifier) error {
	key := id.String()
	b, ok := m.buttons.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownButton, key)
	}

	// A connected or connecting button is disconnected first.
	if mc, ok := m.machines[id]; ok {
		m.teardown(mc)
	}
	delete(m.machines, id)
	m.buttons.Del(key)

	perr := m.store.Delete(key)
	if errors.Is(perr, registry.ErrNotFound) {
		perr = nil
	}
	b.setPhase(PhaseForgotten)

	if perr != nil {
		// In-memory removal still proceeds; the next startup reconciles
		// against the persisted registry.
		m.logger.WithError(perr).WithField("button", key).Error("Failed to persist button removal")
	} else {
		m.logger.WithField("button", key).Info("Button forgotten")
	}
	m.emit(Event{Type: EventForgetCompleted, Identifier: id, Err: perr})
	return nil
}
