package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAck(t *testing.T) {
	assert.Equal(t, "5", FormatAck(5))
	assert.Equal(t, "0", FormatAck(0))
	assert.Equal(t, "1200", FormatAck(1200))
}

func TestParseAck(t *testing.T) {
	tick, err := ParseAck("42")
	require.NoError(t, err)
	assert.Equal(t, 42, tick)

	tick, err = ParseAck(" 7\n")
	require.NoError(t, err)
	assert.Equal(t, 7, tick)

	_, err = ParseAck("seven")
	assert.Error(t, err)
}
