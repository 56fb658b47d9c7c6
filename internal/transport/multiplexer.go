package transport

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/domain/channels"
	"github.com/GriffinCanCode/walletbroker/internal/domain/subscription"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/walletbroker/internal/shared/codec"
	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/id"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// Conn is one framed bidirectional connection. ReadFrame returns io.EOF
// when the peer closes normally. WriteFrame is only called from one
// goroutine at a time.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}

// Dispatcher routes one envelope; *channels.Registry implements it
type Dispatcher interface {
	Dispatch(ctx context.Context, c channels.Caller, in types.Inbound) (channels.Result, error)
}

// PortInfo describes a connection when it is accepted
type PortInfo struct {
	// Transport names the transport in logs and metrics ("ws", "native")
	Transport string
	// Trusted ports may use private channels and relay page origins
	Trusted bool
	// Origin is the connection's own origin, if any
	Origin string
	// Tag identifies the underlying connection in logs
	Tag string
}

// Multiplexer serves many logical request, response and subscription
// streams over each connection it is given.
//
// Every inbound envelope is dispatched on its own goroutine, since page
// requests block until the user decides. Everything written to a port goes
// through that port's single writer goroutine.
type Multiplexer struct {
	dispatcher Dispatcher
	hub        *subscription.Hub
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	buffer     int

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	ports  sync.WaitGroup
}

// NewMultiplexer creates a multiplexer dispatching to d. hub is told when
// a port goes away so its subscriptions are removed.
func NewMultiplexer(d Dispatcher, hub *subscription.Hub, logger *logging.Logger) *Multiplexer {
	if logger == nil {
		logger = logging.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Multiplexer{
		dispatcher: d,
		hub:        hub,
		logger:     logger.Named("transport"),
		buffer:     64,
		base:       base,
		cancel:     cancel,
	}
}

// WithMetrics adds metrics tracking to the multiplexer
func (m *Multiplexer) WithMetrics(metrics *monitoring.Metrics) *Multiplexer {
	m.metrics = metrics
	return m
}

// Serve runs conn until it closes, ctx ends or the multiplexer is closed.
// A normal close by the peer returns nil.
func (m *Multiplexer) Serve(ctx context.Context, conn Conn, info PortInfo) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return errs.ErrBrokerClosed
	}
	m.ports.Add(1)
	m.mu.Unlock()
	defer m.ports.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.base, cancel)
	defer stop()
	// closing the connection is what unblocks a pending ReadFrame
	context.AfterFunc(ctx, func() { conn.Close() })

	p := newPort(info, m.buffer)
	log := m.logger.With(logging.Port(p.id.String()),
		zap.String("transport", info.Transport),
		zap.Bool("trusted", info.Trusted),
		zap.String("conn", info.Tag))
	log.Info("Port connected", logging.Origin(info.Origin))

	if m.metrics != nil {
		m.metrics.PortOpened(info.Transport, info.Trusted)
		defer m.metrics.PortClosed(info.Transport, info.Trusted)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.writeLoop(conn, p, cancel, log)
	}()

	var handlers sync.WaitGroup
	err := m.readLoop(ctx, conn, p, &handlers, log)

	cancel()
	handlers.Wait()
	// after every handler returned, so no subscription can register late
	removed := 0
	if m.hub != nil {
		removed = m.hub.Disconnect(p.id)
	}
	close(p.out)
	<-writerDone

	log.Info("Port disconnected", zap.Int("subscriptions_removed", removed))
	return err
}

// Close disconnects every port and waits for them to finish
func (m *Multiplexer) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.ports.Wait()
}

func (m *Multiplexer) readLoop(ctx context.Context, conn Conn, p *port, handlers *sync.WaitGroup, log *logging.Logger) error {
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			log.Warn("Read failed", zap.Error(err))
			return err
		}
		m.frame(p, "in")

		var in types.Inbound
		if err := codec.UnmarshalStrict(frame, &in); err != nil {
			p.send(ctx, types.NewError(envelopeID(frame), errs.Shape("envelope: %v", err)))
			continue
		}

		handlers.Add(1)
		go func() {
			defer handlers.Done()
			m.handle(ctx, p, in)
		}()
	}
}

func (m *Multiplexer) handle(ctx context.Context, p *port, in types.Inbound) {
	res, err := m.dispatcher.Dispatch(ctx, p.caller(in), in)
	if err != nil {
		p.send(ctx, types.NewError(in.ID, err))
		return
	}

	if res.Stream == nil {
		p.send(ctx, types.NewResponse(in.ID, res.Value))
		return
	}

	// first push, then the acknowledgement, then every later value
	sub := res.Stream.Sub
	if sub != nil {
		defer sub.Unsubscribe()
	}
	if !p.send(ctx, types.NewPush(in.ID, res.Stream.Initial)) || !p.send(ctx, types.NewResponse(in.ID, res.Value)) {
		return
	}
	if sub != nil {
		m.pump(ctx, p, in.ID, sub)
	}
}

// pump forwards a subscription's values until it is removed or the port ends
func (m *Multiplexer) pump(ctx context.Context, p *port, messageID string, sub *subscription.Subscription) {
	for {
		value, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if !p.send(ctx, types.NewPush(messageID, value)) {
			return
		}
		if m.metrics != nil {
			m.metrics.RecordPush(string(sub.Kind))
		}
	}
}

// writeLoop is the port's only writer. After a failed write it keeps
// draining so that senders never block on a dead port.
func (m *Multiplexer) writeLoop(conn Conn, p *port, cancel context.CancelFunc, log *logging.Logger) {
	failed := false
	for out := range p.out {
		if failed {
			continue
		}
		data, err := codec.Marshal(out)
		if err != nil {
			log.Error("Failed to encode envelope", zap.String("id", out.ID), zap.Error(err))
			continue
		}
		if err := conn.WriteFrame(data); err != nil {
			log.Warn("Write failed", zap.Error(err))
			failed = true
			cancel()
			continue
		}
		m.frame(p, "out")
	}
}

func (m *Multiplexer) frame(p *port, direction string) {
	if m.metrics != nil {
		m.metrics.RecordFrame(p.info.Transport, direction)
	}
}

// envelopeID recovers the correlation id of an envelope that failed strict
// decoding, so the error can still be matched by the caller
func envelopeID(frame []byte) string {
	var head struct {
		ID string `json:"id"`
	}
	_ = codec.Unmarshal(frame, &head)
	return head.ID
}

type port struct {
	id   id.PortID
	info PortInfo
	out  chan types.Outbound
}

func newPort(info PortInfo, buffer int) *port {
	return &port{
		id:   id.NewPortID(),
		info: info,
		out:  make(chan types.Outbound, buffer),
	}
}

// caller builds the identity a dispatch runs as. Only trusted ports may
// speak for another origin; untrusted ports are always their own origin.
func (p *port) caller(in types.Inbound) channels.Caller {
	origin := p.info.Origin
	if p.info.Trusted && in.Origin != "" {
		origin = in.Origin
	}
	return channels.Caller{
		Port:      p.id,
		Origin:    origin,
		Trusted:   p.info.Trusted,
		MessageID: in.ID,
	}
}

func (p *port) send(ctx context.Context, out types.Outbound) bool {
	select {
	case p.out <- out:
		return true
	case <-ctx.Done():
		return false
	}
}
