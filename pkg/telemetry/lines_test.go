package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineWriter(t *testing.T) {
	records := make(chan Record, 4)
	w := NewLineWriter(records)

	n, err := w.Write([]byte("30050 40"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Empty(t, records, "partial line")

	_, err = w.Write([]byte("00\nbad\n 2500    0\n"))
	require.NoError(t, err)

	require.Len(t, records, 2)
	r := <-records
	assert.Equal(t, uint16(30050), r.Temperature)
	assert.Equal(t, uint16(4000), r.Power)
	r = <-records
	assert.Equal(t, uint16(2500), r.Temperature)
}

func TestLineWriter_DropsWhenFull(t *testing.T) {
	records := make(chan Record, 1)
	w := NewLineWriter(records)

	n, err := w.Write([]byte(" 2500    0\n 2600    0\n"))
	require.NoError(t, err)
	assert.Equal(t, 22, n)

	require.Len(t, records, 1)
	assert.Equal(t, uint16(2500), (<-records).Temperature)
}
