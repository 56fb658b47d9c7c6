package utils

import "fmt"

// Frame size limits (in bytes)
const (
	MaxFrameSize       = 1 * 1024 * 1024 // Chrome native messaging host limit
	MaxPublicFrameSize = 256 * 1024      // untrusted page envelopes
)

// FrameValidator rejects oversized inbound frames before decoding
type FrameValidator struct {
	maxSize int
}

// NewFrameValidator creates a validator with the specified max size
func NewFrameValidator(maxSize int) *FrameValidator {
	return &FrameValidator{maxSize: maxSize}
}

// DefaultFrameValidator returns a validator with the 1MB limit
func DefaultFrameValidator() *FrameValidator {
	return NewFrameValidator(MaxFrameSize)
}

// MaxSize returns the configured limit
func (v *FrameValidator) MaxSize() int {
	return v.maxSize
}

// ValidateSize checks if the frame size is within limits
func (v *FrameValidator) ValidateSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid frame length: %d", size)
	}
	if size > v.maxSize {
		return fmt.Errorf("frame too large: %d bytes (max %d)", size, v.maxSize)
	}
	return nil
}
