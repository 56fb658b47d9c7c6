package ws

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/shared/utils"
	"github.com/GriffinCanCode/walletbroker/internal/transport"
)

// Config configures the WebSocket endpoint
type Config struct {
	// TrustedOrigins are the origins of the approval UI. Connections from
	// them may use private channels; every other origin is a page.
	TrustedOrigins []string
	// MaxFrameBytes bounds frames from trusted ports
	MaxFrameBytes int
	// WriteTimeout bounds a single frame write
	WriteTimeout time.Duration
}

// Handler upgrades HTTP requests to broker ports
type Handler struct {
	mux      *transport.Multiplexer
	cfg      Config
	trusted  map[string]bool
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(mux *transport.Multiplexer, cfg Config, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = utils.MaxFrameSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	h := &Handler{
		mux:     mux,
		cfg:     cfg,
		trusted: make(map[string]bool, len(cfg.TrustedOrigins)),
		logger:  logger.Named("ws"),
	}
	for _, origin := range cfg.TrustedOrigins {
		h.trusted[normalizeOrigin(origin)] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// pages are expected to connect cross-origin; trust is decided per port
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return h
}

// HandleConnection handles WebSocket upgrade and serves the port
func (h *Handler) HandleConnection(c *gin.Context) {
	origin := c.GetHeader("Origin")
	trusted := h.trusted[normalizeOrigin(origin)]
	tag := uuid.NewString()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("conn", tag), zap.Error(err))
		return
	}

	limit := h.cfg.MaxFrameBytes
	if !trusted && limit > utils.MaxPublicFrameSize {
		limit = utils.MaxPublicFrameSize
	}
	conn.SetReadLimit(int64(limit))

	info := transport.PortInfo{
		Transport: "ws",
		Trusted:   trusted,
		Origin:    origin,
		Tag:       tag,
	}
	if err := h.mux.Serve(c.Request.Context(), NewConn(conn, h.cfg.WriteTimeout), info); err != nil {
		h.logger.Debug("Port ended", zap.String("conn", tag), zap.Error(err))
	}
}

// Conn adapts a gorilla connection to transport.Conn
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
}

// NewConn wraps ws
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// ReadFrame returns the next text or binary message. A close handshake
// from the peer is reported as io.EOF.
func (c *Conn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return nil, io.EOF
	}
	return data, err
}

// WriteFrame writes one text message
func (c *Conn) WriteFrame(data []byte) error {
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection
func (c *Conn) Close() error {
	return c.ws.Close()
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}
