package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MetricSample is a static overview card.
type MetricSample struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Value       MetricValue `json:"value" yaml:"value"`
	Change      string      `json:"change" yaml:"change"`
	Historical  string      `json:"historical" yaml:"historical"`
	Icon        string      `json:"icon" yaml:"icon"`
	Color       string      `json:"color" yaml:"color"`
}

// MetricField is one labelled part of a composite metric value.
type MetricField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// MetricValue is either a plain display string or an ordered record of fields.
type MetricValue struct {
	Text   string
	Fields []MetricField
}

// IsRecord reports whether the value carries nested fields.
func (v MetricValue) IsRecord() bool {
	return len(v.Fields) > 0
}

// String renders the value on a single line.
func (v MetricValue) String() string {
	if !v.IsRecord() {
		return v.Text
	}
	var buf bytes.Buffer
	for i, f := range v.Fields {
		if i > 0 {
			buf.WriteString(" · ")
		}
		fmt.Fprintf(&buf, "%s %s", f.Label, f.Value)
	}
	return buf.String()
}

// UnmarshalYAML accepts a scalar or a mapping, keeping mapping order.
func (v *MetricValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		v.Text = node.Value
		v.Fields = nil
		return nil
	case yaml.MappingNode:
		v.Text = ""
		v.Fields = make([]MetricField, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("metric value field %q must be a scalar (line %d)", key.Value, val.Line)
			}
			v.Fields = append(v.Fields, MetricField{Label: key.Value, Value: val.Value})
		}
		return nil
	default:
		return fmt.Errorf("metric value must be a string or a mapping (line %d)", node.Line)
	}
}

// MarshalJSON emits a string for plain values and an object for records.
func (v MetricValue) MarshalJSON() ([]byte, error) {
	if !v.IsRecord() {
		return json.Marshal(v.Text)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range v.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON mirrors MarshalJSON. Object key order follows the payload.
func (v *MetricValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		v.Fields = nil
		return json.Unmarshal(trimmed, &v.Text)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metric value must be a string or an object")
	}
	v.Text = ""
	v.Fields = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var val string
		if err := dec.Decode(&val); err != nil {
			return err
		}
		v.Fields = append(v.Fields, MetricField{Label: key, Value: val})
	}
	_, err = dec.Token()
	return err
}

// Statistic is a named canned figure shown in a metric dialog.
type Statistic struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// MetricDetail is the content of a metric detail dialog.
type MetricDetail struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Chart           string      `json:"chart"`
	AnalysisChart   string      `json:"analysis_chart"`
	HistoricalChart string      `json:"historical_chart"`
	Statistics      []Statistic `json:"statistics"`
}

// Gauge is a labelled progress bar on an overview panel.
type Gauge struct {
	Label   string `json:"label" yaml:"label"`
	Value   string `json:"value" yaml:"value"`
	Percent int    `json:"percent" yaml:"percent"`
	Tone    string `json:"tone,omitempty" yaml:"tone"`
}

// Panel is an overview card composed of a headline gauge and smaller gauges.
type Panel struct {
	Title    string  `json:"title" yaml:"title"`
	Headline Gauge   `json:"headline" yaml:"headline"`
	Gauges   []Gauge `json:"gauges" yaml:"gauges"`
}

// ModelSummary is a row in the models tab.
type ModelSummary struct {
	Name     string `json:"name" yaml:"name"`
	Status   string `json:"status" yaml:"status"`
	Accuracy string `json:"accuracy" yaml:"accuracy"`
	Latency  string `json:"latency" yaml:"latency"`
	Usage    string `json:"usage" yaml:"usage"`
}
