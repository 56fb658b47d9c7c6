package nativemsg

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/walletbroker/internal/shared/utils"
)

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	v := utils.DefaultFrameValidator()

	require.NoError(t, WriteFrame(&buf, v, []byte(`{"id":"1","message":"pri(unsubscribe)"}`)))
	require.NoError(t, WriteFrame(&buf, v, []byte(`{"id":"2"}`)))

	assert.Equal(t, uint32(39), binary.LittleEndian.Uint32(buf.Bytes()[:4]))

	first, err := ReadFrame(&buf, v)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1","message":"pri(unsubscribe)"}`, string(first))

	second, err := ReadFrame(&buf, v)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"2"}`, string(second))

	_, err = ReadFrame(&buf, v)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameLimits(t *testing.T) {
	v := utils.NewFrameValidator(8)

	var zero bytes.Buffer
	require.NoError(t, binary.Write(&zero, binary.LittleEndian, uint32(0)))
	_, err := ReadFrame(&zero, v)
	assert.Error(t, err)

	var big bytes.Buffer
	require.NoError(t, binary.Write(&big, binary.LittleEndian, uint32(9)))
	big.WriteString("123456789")
	_, err = ReadFrame(&big, v)
	assert.ErrorContains(t, err, "too large")

	var truncated bytes.Buffer
	require.NoError(t, binary.Write(&truncated, binary.LittleEndian, uint32(4)))
	truncated.WriteString("12")
	_, err = ReadFrame(&truncated, v)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.Error(t, WriteFrame(io.Discard, v, []byte("123456789")))
}
