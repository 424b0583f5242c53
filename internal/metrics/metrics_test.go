package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/berfenger/switch2mqtt/internal/core/switchtile"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSeries(t *testing.T) {

	assert := assert.New(t)

	on := "1"
	m := NewMetrics()
	m.ObserveSeries(switchtile.Normalize([]switchtile.SeriesInput{
		{Label: "a", Value: &on, StateMap: &switchtile.StateMap{On: &on}},
		{Label: "b"},
		{Label: "c"},
	}))

	assert.Equal(3.0, testutil.ToFloat64(m.Series))
	assert.Equal(1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("on")))
	assert.Equal(2.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("unknown")))
}

func TestObserveActionAndUpdates(t *testing.T) {

	assert := assert.New(t)

	m := NewMetrics()
	m.ObserveAction(nil)
	m.ObserveAction(errors.New("timeout"))
	m.ObserveAction(nil)
	m.ObserveValueUpdate("mqtt")

	assert.Equal(2.0, testutil.ToFloat64(m.Actions.WithLabelValues("ok")))
	assert.Equal(1.0, testutil.ToFloat64(m.Actions.WithLabelValues("error")))
	assert.Equal(1.0, testutil.ToFloat64(m.ValueUpdates.WithLabelValues("mqtt")))
}

func TestNilMetrics(t *testing.T) {

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSeries(nil)
		m.ObserveAction(nil)
		m.ObserveValueUpdate("http")
	})
}

func TestHandler(t *testing.T) {

	assert := assert.New(t)

	m := NewMetrics()
	m.ObserveValueUpdate("modbus")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(200, rec.Code)
	assert.Contains(rec.Body.String(), `switch2mqtt_value_updates_total{source="modbus"} 1`)
}
