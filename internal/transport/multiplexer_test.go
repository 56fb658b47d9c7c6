package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/walletbroker/internal/domain/broker"
	"github.com/GriffinCanCode/walletbroker/internal/domain/channels"
	"github.com/GriffinCanCode/walletbroker/internal/domain/resolver"
	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/types"
)

// pipeConn is an in-memory Conn driven by the test
type pipeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *pipeConn) ReadFrame() ([]byte, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *pipeConn) WriteFrame(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("closed")
	default:
	}
	c.out <- append([]byte(nil), data...)
	return nil
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type envelope struct {
	ID           string          `json:"id"`
	Response     json.RawMessage `json:"response"`
	Subscription json.RawMessage `json:"subscription"`
	Error        *errs.Wire      `json:"error"`
}

func (c *pipeConn) send(t *testing.T, id string, message types.ChannelName, request string) {
	t.Helper()
	in := map[string]any{"id": id, "message": message}
	if request != "" {
		in["request"] = json.RawMessage(request)
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	c.in <- data
}

func (c *pipeConn) recv(t *testing.T) envelope {
	t.Helper()
	select {
	case data := <-c.out:
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return envelope{}
	}
}

type signer struct{}

func (signer) Sign(context.Context, types.SignPayload) (string, error) { return "0xsig", nil }

// heldSigner signs once released, or fails when its context ends
type heldSigner struct {
	started chan struct{}
	release chan struct{}
}

func (s *heldSigner) Sign(ctx context.Context, _ types.SignPayload) (string, error) {
	close(s.started)
	select {
	case <-s.release:
		return "0xsig", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type grantAll struct{}

func (grantAll) HasCapability(context.Context, string, string) (bool, error) { return true, nil }

type harness struct {
	broker  *broker.Broker
	mux     *Multiplexer
	metrics *monitoring.Metrics
	wg      sync.WaitGroup
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, signer{})
}

func newHarnessWith(t *testing.T, s resolver.Signer) *harness {
	t.Helper()
	metrics := monitoring.NewMetrics()
	b := broker.New(broker.Options{
		Collaborators: resolver.Collaborators{Signer: s},
		Metrics:       metrics,
	})
	registry := channels.NewRegistry(b, nil).WithOracle(grantAll{})
	h := &harness{
		broker:  b,
		mux:     NewMultiplexer(registry, b.Hub(), nil).WithMetrics(metrics),
		metrics: metrics,
	}
	t.Cleanup(func() {
		h.mux.Close()
		h.wg.Wait()
		b.Close()
	})
	return h
}

func (h *harness) connect(info PortInfo) (*pipeConn, <-chan error) {
	conn := newPipeConn()
	done := make(chan error, 1)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		done <- h.mux.Serve(context.Background(), conn, info)
	}()
	return conn, done
}

var (
	uiPort   = PortInfo{Transport: "test", Trusted: true, Origin: "chrome-extension://wallet"}
	pagePort = PortInfo{Transport: "test", Origin: "https://app.example"}
)

func TestSubscribeDecideAndAnswerPage(t *testing.T) {
	h := newHarness(t)
	ui, _ := h.connect(uiPort)
	page, _ := h.connect(pagePort)

	ui.send(t, "s1", channels.EthSigningSubscribe.Name, "")
	first := ui.recv(t)
	assert.Equal(t, "s1", first.ID)
	assert.JSONEq(t, `[]`, string(first.Subscription))
	ack := ui.recv(t)
	assert.Equal(t, "s1", ack.ID)
	assert.JSONEq(t, `true`, string(ack.Response))

	page.send(t, "p1", channels.EthRequest.Name,
		`{"method":"personal_sign","params":["0x68656c6c6f","0x6b175474e89094c44da98b954eedeac495271d0f"]}`)

	push := ui.recv(t)
	require.Equal(t, "s1", push.ID)
	var pending []types.SigningRequest
	require.NoError(t, json.Unmarshal(push.Subscription, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "https://app.example", pending[0].URL)

	ui.send(t, "a1", channels.EthApproveSign.Name, `{"id":"`+pending[0].ID+`"}`)

	// the approval answer and the emptied list may arrive in either order
	var sawAck, sawEmpty bool
	for i := 0; i < 2; i++ {
		env := ui.recv(t)
		switch env.ID {
		case "a1":
			assert.JSONEq(t, `true`, string(env.Response))
			sawAck = true
		case "s1":
			assert.JSONEq(t, `[]`, string(env.Subscription))
			sawEmpty = true
		}
	}
	assert.True(t, sawAck)
	assert.True(t, sawEmpty)

	answer := page.recv(t)
	assert.Equal(t, "p1", answer.ID)
	assert.JSONEq(t, `"0xsig"`, string(answer.Response))
}

func TestCallErrorsKeepConnectionOpen(t *testing.T) {
	h := newHarness(t)
	ui, _ := h.connect(uiPort)

	ui.send(t, "1", "pri(nope)", "")
	env := ui.recv(t)
	assert.Equal(t, "1", env.ID)
	require.NotNil(t, env.Error)
	assert.Equal(t, errs.CodeUnknownChannel, env.Error.Code)

	ui.in <- []byte(`{"id":"2","message":"pri(unsubscribe)","bogus":true}`)
	env = ui.recv(t)
	assert.Equal(t, "2", env.ID)
	require.NotNil(t, env.Error)
	assert.Equal(t, errs.CodePayloadShape, env.Error.Code)

	ui.send(t, "3", channels.NetworkAddApprove.Name, `{"id":"req_gone"}`)
	env = ui.recv(t)
	require.NotNil(t, env.Error)
	assert.Equal(t, errs.CodeRequestNotFound, env.Error.Code)

	ui.send(t, "4", channels.NetworkAddRequests.Name, "")
	env = ui.recv(t)
	assert.Nil(t, env.Error)
	assert.JSONEq(t, `[]`, string(env.Response))
}

func TestPagePortCannotUsePrivateChannels(t *testing.T) {
	h := newHarness(t)
	page, _ := h.connect(pagePort)

	page.send(t, "1", channels.NetworkAddSubscribe.Name, "")
	env := page.recv(t)
	require.NotNil(t, env.Error)
	assert.Equal(t, errs.CodeOriginNotPermitted, env.Error.Code)
	assert.Equal(t, errs.ProviderUnauthorized, env.Error.ProviderCode)
}

func TestUntrustedPortCannotSpeakForAnotherOrigin(t *testing.T) {
	p := newPort(pagePort, 1)
	c := p.caller(types.Inbound{ID: "1", Origin: "https://victim.example"})
	assert.Equal(t, "https://app.example", c.Origin)
	assert.False(t, c.Trusted)

	relay := newPort(uiPort, 1)
	c = relay.caller(types.Inbound{ID: "1", Origin: "https://app.example"})
	assert.Equal(t, "https://app.example", c.Origin)
	assert.True(t, c.Trusted)
}

func TestDisconnectRemovesSubscriptions(t *testing.T) {
	h := newHarness(t)
	ui, done := h.connect(uiPort)

	ui.send(t, "s1", channels.NetworkAddSubscribe.Name, "")
	ui.send(t, "s2", channels.SigningSubscribe.Name, "")
	for i := 0; i < 4; i++ {
		ui.recv(t)
	}
	require.Equal(t, 2, h.broker.Hub().Count())

	close(ui.in)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, 0, h.broker.Hub().Count())
	assert.Equal(t, int64(0), h.metrics.Snapshot(0).ActivePorts)
}

func TestUnsubscribeStopsPushes(t *testing.T) {
	h := newHarness(t)
	ui, _ := h.connect(uiPort)
	page, _ := h.connect(pagePort)

	ui.send(t, "s1", channels.SigningSubscribe.Name, "")
	ui.recv(t)
	ui.recv(t)

	ui.send(t, "u1", channels.Unsubscribe.Name, `{"id":"s1"}`)
	env := ui.recv(t)
	assert.Equal(t, "u1", env.ID)
	assert.JSONEq(t, `true`, string(env.Response))

	page.send(t, "p1", channels.SubstrateSign.Name, `{"method":"bytes","address":"5F","payload":"0x00"}`)
	require.Eventually(t, func() bool { return h.broker.Pending() == 1 }, time.Second, 5*time.Millisecond)

	select {
	case data := <-ui.out:
		t.Fatalf("unexpected frame after unsubscribe: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseEndsAllPorts(t *testing.T) {
	h := newHarness(t)
	_, done := h.connect(uiPort)
	page, pageDone := h.connect(pagePort)

	page.send(t, "p1", channels.SubstrateSign.Name, `{"method":"bytes","address":"5F","payload":"0x00"}`)
	require.Eventually(t, func() bool { return h.broker.Pending() == 1 }, time.Second, 5*time.Millisecond)

	h.mux.Close()
	for _, ch := range []<-chan error{done, pageDone} {
		select {
		case err := <-ch:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
	}

	// the page is gone but its request waits for the user
	assert.Equal(t, 1, h.broker.Pending())

	_, refused := h.connect(uiPort)
	assert.ErrorIs(t, <-refused, errs.ErrBrokerClosed)
}

func TestApprovalSurvivesUIDisconnect(t *testing.T) {
	held := &heldSigner{started: make(chan struct{}), release: make(chan struct{})}
	h := newHarnessWith(t, held)
	ui, uiDone := h.connect(uiPort)
	page, _ := h.connect(pagePort)

	page.send(t, "p1", channels.EthRequest.Name,
		`{"method":"personal_sign","params":["0x68656c6c6f","0x6b175474e89094c44da98b954eedeac495271d0f"]}`)
	require.Eventually(t, func() bool { return h.broker.Pending() == 1 }, time.Second, 5*time.Millisecond)
	requestID := h.broker.Queues().EthSigning.List()[0].ID

	ui.send(t, "a1", channels.EthApproveSign.Name, `{"id":"`+requestID+`"}`)
	select {
	case <-held.started:
	case <-time.After(2 * time.Second):
		t.Fatal("signer was not called")
	}

	// the popup closes while the signer is still working
	close(ui.in)
	select {
	case <-ui.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("ui port was not torn down")
	}
	close(held.release)

	answer := page.recv(t)
	assert.Equal(t, "p1", answer.ID)
	require.Nil(t, answer.Error)
	assert.JSONEq(t, `"0xsig"`, string(answer.Response))
	assert.Equal(t, 0, h.broker.Pending())

	select {
	case err := <-uiDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}
