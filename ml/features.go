package ml

import (
	"fmt"
	"math"
	"strings"
)

// WaterSample holds the nine readings of one water sample. Tags match the
// column names the model was trained with.
type WaterSample struct {
	PH              float64 `json:"ph" yaml:"ph"`
	Hardness        float64 `json:"Hardness" yaml:"Hardness"`
	Solids          float64 `json:"Solids" yaml:"Solids"`
	Chloramines     float64 `json:"Chloramines" yaml:"Chloramines"`
	Sulfate         float64 `json:"Sulfate" yaml:"Sulfate"`
	Conductivity    float64 `json:"Conductivity" yaml:"Conductivity"`
	OrganicCarbon   float64 `json:"Organic_carbon" yaml:"Organic_carbon"`
	Trihalomethanes float64 `json:"Trihalomethanes" yaml:"Trihalomethanes"`
	Turbidity       float64 `json:"Turbidity" yaml:"Turbidity"`
}

// DefaultSample returns the readings the input forms start with.
func DefaultSample() WaterSample {
	return WaterSample{
		PH:              7.0,
		Hardness:        150,
		Solids:          20000,
		Chloramines:     7,
		Sulfate:         350,
		Conductivity:    500,
		OrganicCarbon:   10,
		Trihalomethanes: 60,
		Turbidity:       4,
	}
}

// FeatureNames returns the column order used during training. Providers
// that read columns by position depend on it.
func FeatureNames() []string {
	return []string{
		"ph",
		"Hardness",
		"Solids",
		"Chloramines",
		"Sulfate",
		"Conductivity",
		"Organic_carbon",
		"Trihalomethanes",
		"Turbidity",
	}
}

// FeatureVector arranges the sample in FeatureNames order.
func FeatureVector(sample WaterSample) []float64 {
	return []float64{
		sample.PH,
		sample.Hardness,
		sample.Solids,
		sample.Chloramines,
		sample.Sulfate,
		sample.Conductivity,
		sample.OrganicCarbon,
		sample.Trihalomethanes,
		sample.Turbidity,
	}
}

// Values returns the sample keyed by column name.
func (s WaterSample) Values() map[string]float64 {
	values := make(map[string]float64, 9)
	vector := FeatureVector(s)
	for i, name := range FeatureNames() {
		values[name] = vector[i]
	}
	return values
}

// Set assigns one reading by column name. Names are matched exactly first,
// then case-insensitively.
func (s *WaterSample) Set(name string, value float64) error {
	field := s.field(name)
	if field == nil {
		return fmt.Errorf("unknown reading %q", name)
	}
	*field = value
	return nil
}

func (s *WaterSample) field(name string) *float64 {
	fields := []*float64{
		&s.PH,
		&s.Hardness,
		&s.Solids,
		&s.Chloramines,
		&s.Sulfate,
		&s.Conductivity,
		&s.OrganicCarbon,
		&s.Trihalomethanes,
		&s.Turbidity,
	}
	names := FeatureNames()
	for i, n := range names {
		if n == name {
			return fields[i]
		}
	}
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return fields[i]
		}
	}
	return nil
}

// SampleFromMap builds a sample from named readings. All nine columns
// must be present; extra keys are ignored.
func SampleFromMap(values map[string]float64) (WaterSample, error) {
	var sample WaterSample
	var missing []string
	for _, name := range FeatureNames() {
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		_ = sample.Set(name, v)
	}
	if len(missing) > 0 {
		return WaterSample{}, fmt.Errorf("missing readings: %s", strings.Join(missing, ", "))
	}
	return sample, nil
}

// Finite reports whether every reading is a finite number.
func (s WaterSample) Finite() bool {
	for _, v := range FeatureVector(s) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
