// Package catalog holds the dashboard's static content: overview cards,
// panels, the models tab and the per-metric dialog lookup tables.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/splax/lumia/internal/domain"
)

//go:embed catalog.yaml
var builtin []byte

const (
	fallbackName  = "Metric"
	fallbackChart = "Detailed Chart"
)

type detailSpec struct {
	Name       string             `yaml:"name"`
	Chart      string             `yaml:"chart"`
	Statistics []domain.Statistic `yaml:"statistics"`
}

type document struct {
	Metrics []domain.MetricSample `yaml:"metrics"`
	Details map[string]detailSpec `yaml:"details"`
	Panels  []domain.Panel        `yaml:"panels"`
	Models  []domain.ModelSummary `yaml:"models"`
}

// Catalog is an immutable set of static dashboard content.
type Catalog struct {
	metrics []domain.MetricSample
	details map[string]detailSpec
	panels  []domain.Panel
	models  []domain.ModelSummary
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("catalog: builtin catalog invalid: %v", err))
	}
	return c
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Metrics))
	for _, m := range doc.Metrics {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog metric %q has no id", m.Title)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("catalog metric id %q repeated", id)
		}
		seen[id] = struct{}{}
	}
	if doc.Details == nil {
		doc.Details = make(map[string]detailSpec)
	}
	return &Catalog{
		metrics: doc.Metrics,
		details: doc.Details,
		panels:  doc.Panels,
		models:  doc.Models,
	}, nil
}

// Metrics returns the overview cards in display order.
func (c *Catalog) Metrics() []domain.MetricSample {
	return append([]domain.MetricSample(nil), c.metrics...)
}

// Metric looks up a card by id.
func (c *Catalog) Metric(id string) (domain.MetricSample, bool) {
	for _, m := range c.metrics {
		if m.ID == id {
			return m, true
		}
	}
	return domain.MetricSample{}, false
}

// Panels returns the overview panels.
func (c *Catalog) Panels() []domain.Panel {
	return append([]domain.Panel(nil), c.panels...)
}

// Models returns the models tab rows.
func (c *Catalog) Models() []domain.ModelSummary {
	return append([]domain.ModelSummary(nil), c.models...)
}

// Detail returns dialog content for a metric id. Unknown ids yield placeholder
// content with no statistics.
func (c *Catalog) Detail(id string) domain.MetricDetail {
	entry, ok := c.details[strings.TrimSpace(id)]
	name := entry.Name
	chart := entry.Chart
	if !ok || name == "" {
		name = fallbackName
	}
	if !ok || chart == "" {
		chart = fallbackChart
	}
	stats := append([]domain.Statistic{}, entry.Statistics...)
	return domain.MetricDetail{
		ID:              id,
		Name:            name,
		Chart:           chart,
		AnalysisChart:   name + " Performance Analysis Chart",
		HistoricalChart: "Historical " + name + " Data Chart",
		Statistics:      stats,
	}
}
