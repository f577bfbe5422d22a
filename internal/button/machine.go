package button

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/buttond/internal/transport"
)

// machine is the loop-owned connection state machine for one button. All
// fields are touched only from the manager loop; results of in-flight work
// are posted back to the loop carrying the generation they belong to, so a
// completion that raced a teardown or resync is recognized as stale and
// discarded.
type machine struct {
	btn *Button

	// gen increments on every teardown and every new connect attempt.
	gen     uint64
	cancel  context.CancelFunc
	conn    transport.Connection
	backoff time.Duration
	retry   *time.Timer
}

// evaluate starts a connect attempt if the button wants one and the radio
// allows it. While the manager is disabled or the radio is not powered on the
// transition is deferred, not failed: the button simply stays pending.
func (m *Manager) evaluate(mc *machine) {
	b := mc.btn
	if b.Intent() != IntentWantConnected || b.Phase() != PhasePendingConnect {
		return
	}
	if !m.enabled.Load() || m.RadioState() != transport.RadioPoweredOn {
		return
	}
	m.startConnect(mc)
}

func (m *Manager) startConnect(mc *machine) {
	b := mc.btn
	mc.gen++
	gen := mc.gen

	ctx, cancel := context.WithTimeout(context.Background(), m.connectTimeout)
	mc.cancel = cancel
	b.setPhase(PhaseConnecting)

	addr := b.Address()
	m.logger.WithFields(logrus.Fields{
		"button":  b.Identifier().String(),
		"address": addr,
	}).Debug("Connecting to button")

	go func() {
		conn, err := m.tr.Connect(ctx, addr)
		var md *transport.Metadata
		if err == nil {
			md, err = conn.Handshake(ctx, m.creds)
			if err != nil {
				// A transport link without a verified handshake is a
				// failed connection.
				_ = conn.Disconnect()
				conn = nil
			}
		}
		cancel()
		m.post(func() { m.finishConnect(mc, gen, conn, md, err) })
	}()
}

func (m *Manager) finishConnect(mc *machine, gen uint64, conn transport.Connection, md *transport.Metadata, err error) {
	b := mc.btn
	if gen != mc.gen || b.Phase() != PhaseConnecting {
		// Stale attempt: a teardown, resync or forget happened in between.
		if conn != nil {
			_ = conn.Disconnect()
		}
		return
	}
	mc.cancel = nil

	if err != nil {
		m.logger.WithError(err).WithField("button", b.Identifier().String()).Debug("Connect attempt failed")
		if b.Intent() == IntentWantConnected {
			b.setPhase(PhasePendingConnect)
			m.scheduleRetry(mc)
		} else {
			b.setPhase(PhaseDisconnected)
		}
		return
	}

	if md == nil {
		md = &transport.Metadata{}
	}
	mc.conn = conn
	mc.backoff = m.initialBackoff
	b.markVerified(md.Name, md.FirmwareVersion)
	b.setPhase(PhaseConnected)
	m.persist(b)

	conn.OnDisconnect(func() {
		m.post(func() { m.handleDrop(mc, gen) })
	})

	m.logger.WithFields(logrus.Fields{
		"button": b.Identifier().String(),
		"name":   md.Name,
	}).Info("Button connected")
	m.emit(Event{Type: EventButtonConnected, Button: b, Identifier: b.Identifier()})
}

func (m *Manager) handleDrop(mc *machine, gen uint64) {
	b := mc.btn
	if gen != mc.gen || b.Phase() != PhaseConnected {
		return
	}
	mc.gen++
	mc.conn = nil

	m.logger.WithField("button", b.Identifier().String()).Info("Button connection dropped")

	if b.Intent() == IntentWantConnected && m.enabled.Load() {
		b.setPhase(PhasePendingConnect)
	} else {
		b.setPhase(PhaseDisconnected)
	}
	m.emit(Event{Type: EventButtonDisconnected, Button: b, Identifier: b.Identifier()})
	m.evaluate(mc)
}

// scheduleRetry re-arms evaluation after a failed attempt with bounded
// exponential backoff. The backoff resets on a successful handshake and on
// every radio resync.
func (m *Manager) scheduleRetry(mc *machine) {
	d := mc.backoff
	mc.backoff *= 2
	if mc.backoff > m.maxBackoff {
		mc.backoff = m.maxBackoff
	}

	gen := mc.gen
	mc.retry = time.AfterFunc(d, func() {
		m.post(func() {
			if gen != mc.gen {
				return
			}
			m.evaluate(mc)
		})
	})
}

// teardown cancels any in-flight attempt, stops the retry timer and drops the
// live connection. The caller decides the next phase.
func (m *Manager) teardown(mc *machine) {
	mc.gen++
	if mc.cancel != nil {
		mc.cancel()
		mc.cancel = nil
	}
	if mc.retry != nil {
		mc.retry.Stop()
		mc.retry = nil
	}
	if mc.conn != nil {
		_ = mc.conn.Disconnect()
		mc.conn = nil
	}
}
