package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums the samples of family name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(want) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.RecordPull("homogen", 10, true, time.Millisecond, nil)
	c.RecordPull("homogen", 10, false, time.Millisecond, nil)
	c.RecordPull("homogen", 10, false, time.Millisecond, errors.New("x"))
	c.RecordPush("csr", 4, time.Millisecond, nil)
	c.RecordConversion("int32", "float64", 100, time.Millisecond)
	c.RecordTransfer("host-to-device", 800, time.Millisecond)

	assert.Equal(t, 1.0, counterValue(t, reg, "tabula_pulls_total", map[string]string{"mode": "alias"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "tabula_pulls_total", map[string]string{"mode": "copy"}))
	assert.Equal(t, 20.0, counterValue(t, reg, "tabula_block_elements_total", map[string]string{"op": "pull"}))
	assert.Equal(t, 4.0, counterValue(t, reg, "tabula_block_elements_total", map[string]string{"op": "push"}))
	assert.Equal(t, 100.0, counterValue(t, reg, "tabula_converted_elements_total", map[string]string{"from": "int32"}))
	assert.Equal(t, 800.0, counterValue(t, reg, "tabula_transfer_bytes_total", nil))

	_, err = New(reg)
	assert.Error(t, err, "duplicate registration must fail")
}
