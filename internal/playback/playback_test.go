package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/pcmbridge/internal/ioplug"
)

func TestFormatForBitDepth(t *testing.T) {
	f, err := formatForBitDepth(16)
	require.NoError(t, err)
	assert.Equal(t, ioplug.FormatS16LE, f)

	f, err = formatForBitDepth(24)
	require.NoError(t, err)
	assert.Equal(t, ioplug.FormatS243LE, f)

	f, err = formatForBitDepth(32)
	require.NoError(t, err)
	assert.Equal(t, ioplug.FormatS32LE, f)

	_, err = formatForBitDepth(8)
	assert.Error(t, err)
}

func TestEncodeSamplesLittleEndian(t *testing.T) {
	dst := make([]byte, 4)
	encodeSamples(dst, []int{0x1234, -2}, 2)
	assert.Equal(t, []byte{0x34, 0x12, 0xfe, 0xff}, dst)

	dst = make([]byte, 3)
	encodeSamples(dst, []int{-1}, 3)
	assert.Equal(t, []byte{0xff, 0xff, 0xff}, dst)

	dst = make([]byte, 4)
	encodeSamples(dst, []int{0x01020304}, 4)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, dst)
}
