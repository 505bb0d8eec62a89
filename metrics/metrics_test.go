package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasicCollector(t *testing.T) {
	var c BasicCollector

	c.RecordPull("homogen", 12, true, 2*time.Microsecond, nil)
	c.RecordPull("homogen", 12, false, 4*time.Microsecond, errors.New("range"))
	c.RecordPush("homogen", 3, time.Microsecond, nil)
	c.RecordConversion("int32", "float64", 12, time.Microsecond)
	c.RecordTransfer("device-to-host", 96, time.Microsecond)

	s := c.GetStats()
	assert.Equal(t, int64(2), s.PullCount)
	assert.Equal(t, int64(1), s.PullAliased)
	assert.Equal(t, int64(1), s.PullErrors)
	assert.Equal(t, int64(12), s.PullElements)
	assert.Equal(t, int64(3000), s.PullAvgNanos)
	assert.Equal(t, int64(3), s.PushElements)
	assert.Equal(t, int64(1), s.ConversionGroups)
	assert.Equal(t, int64(96), s.TransferBytes)
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, NoopCollector{}, OrNoop(nil))
	c := &BasicCollector{}
	assert.Same(t, c, OrNoop(c))
}
