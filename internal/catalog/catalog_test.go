package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogContent(t *testing.T) {
	c := Default()

	metrics := c.Metrics()
	require.Len(t, metrics, 5)
	ids := make([]string, 0, len(metrics))
	for _, m := range metrics {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"latency", "throughput", "accuracy", "resources", "availability"}, ids)

	latency, ok := c.Metric("latency")
	require.True(t, ok)
	assert.Equal(t, "42ms", latency.Value.Text)

	resources, ok := c.Metric("resources")
	require.True(t, ok)
	assert.True(t, resources.Value.IsRecord())

	assert.Len(t, c.Panels(), 2)
	require.Len(t, c.Models(), 3)
	assert.Equal(t, "Lumia V2", c.Models()[0].Name)
}

func TestDetailKnownMetric(t *testing.T) {
	d := Default().Detail("resources")

	assert.Equal(t, "Resource Usage", d.Name)
	assert.Equal(t, "CPU & Memory Usage Chart", d.Chart)
	assert.Equal(t, "Resource Usage Performance Analysis Chart", d.AnalysisChart)
	assert.Equal(t, "Historical Resource Usage Data Chart", d.HistoricalChart)
	require.Len(t, d.Statistics, 6)
	assert.Equal(t, "GPU Usage", d.Statistics[2].Name)
}

func TestDetailUnknownMetricFallsBack(t *testing.T) {
	d := Default().Detail("does-not-exist")

	assert.Equal(t, "Metric", d.Name)
	assert.Equal(t, "Detailed Chart", d.Chart)
	assert.NotNil(t, d.Statistics)
	assert.Empty(t, d.Statistics)
}

func TestMetricsReturnsCopy(t *testing.T) {
	c := Default()
	m := c.Metrics()
	m[0].Title = "mutated"

	again := c.Metrics()
	assert.Equal(t, "Latency", again[0].Title)
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	_, err := Parse([]byte("metrics:\n  - {id: a, title: A, value: '1'}\n  - {id: a, title: B, value: '2'}\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("metrics:\n  - {title: A, value: '1'}\n"))
	assert.Error(t, err)
}
