package nativemsg

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/GriffinCanCode/walletbroker/internal/shared/utils"
)

// ReadFrame reads one length-prefixed message: 4 bytes little-endian
// length, then the payload. io.EOF before the prefix means the browser
// closed the pipe.
func ReadFrame(r io.Reader, v *utils.FrameValidator) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated length prefix: %w", err)
		}
		return nil, err
	}
	if err := v.ValidateSize(int(length)); err != nil {
		return nil, err
	}

	msg := make([]byte, length)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, fmt.Errorf("failed to read message payload: %w", err)
	}
	return msg, nil
}

// WriteFrame writes one length-prefixed message
func WriteFrame(w io.Writer, v *utils.FrameValidator, data []byte) error {
	if err := v.ValidateSize(len(data)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write message payload: %w", err)
	}
	return nil
}

// Conn is a native messaging port: frames are read from r and written to w
type Conn struct {
	r         io.Reader
	w         io.Writer
	validator *utils.FrameValidator
	closeOnce sync.Once
}

// NewConn creates a port over r and w. maxFrame <= 0 uses the 1MB limit.
func NewConn(r io.Reader, w io.Writer, maxFrame int) *Conn {
	v := utils.DefaultFrameValidator()
	if maxFrame > 0 {
		v = utils.NewFrameValidator(maxFrame)
	}
	return &Conn{r: r, w: w, validator: v}
}

// ReadFrame reads the next message
func (c *Conn) ReadFrame() ([]byte, error) {
	return ReadFrame(c.r, c.validator)
}

// WriteFrame writes one message
func (c *Conn) WriteFrame(data []byte) error {
	return WriteFrame(c.w, c.validator, data)
}

// Close closes the reader if it can be closed, which unblocks ReadFrame
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if closer, ok := c.r.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}
