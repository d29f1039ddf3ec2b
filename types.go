package gaggiuino_mcp

import (
	"bytes"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ID is an identifier assigned by the machine. The firmware sends it either
// as a JSON string or as a bare number; both decode to the same text.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n jsoniter.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Shot is a recorded extraction as stored on the machine.
type Shot struct {
	ID        ID       `json:"id"`
	Timestamp string   `json:"timestamp"`
	Duration  float64  `json:"duration"`
	Data      ShotData `json:"data"`
}

// ShotData holds the sensor series of a shot. Every present series has one
// sample per entry of TimePoints.
type ShotData struct {
	Temperature []float64 `json:"temperature"`
	Pressure    []float64 `json:"pressure"`
	Flow        []float64 `json:"flow"`
	Weight      []float64 `json:"weight,omitempty"`
	TimePoints  []float64 `json:"timePoints"`
}

// Validate reports a malformed series.
func (d ShotData) Validate() error {
	n := len(d.TimePoints)
	series := []struct {
		name string
		vals []float64
	}{
		{"temperature", d.Temperature},
		{"pressure", d.Pressure},
		{"flow", d.Flow},
	}
	if d.Weight != nil {
		series = append(series, struct {
			name string
			vals []float64
		}{"weight", d.Weight})
	}
	for _, s := range series {
		if len(s.vals) != n {
			return fmt.Errorf("malformed shot data series: %s has %d samples, timePoints has %d", s.name, len(s.vals), n)
		}
	}
	return nil
}

// ShotDataPoint is one sample of an uploaded shot.
type ShotDataPoint struct {
	Timestamp   float64  `json:"timestamp" jsonschema:"Milliseconds since start of shot"`
	Temperature float64  `json:"temperature" jsonschema:"Temperature in Celsius"`
	Pressure    float64  `json:"pressure" jsonschema:"Pressure in bars"`
	Flow        float64  `json:"flow" jsonschema:"Flow rate in ml/s"`
	Weight      *float64 `json:"weight,omitempty" jsonschema:"Current weight in grams"`
}

// ShotMetadata describes the context of an uploaded shot.
type ShotMetadata struct {
	Profile      string   `json:"profile" jsonschema:"The profile used for the shot"`
	BeanName     string   `json:"beanName,omitempty" jsonschema:"Name of the coffee beans used"`
	GrindSetting *float64 `json:"grindSetting,omitempty" jsonschema:"Grinder setting used"`
	DoseWeight   *float64 `json:"doseWeight,omitempty" jsonschema:"Weight of ground coffee in grams"`
	BrewRatio    *float64 `json:"brewRatio,omitempty" jsonschema:"Desired brew ratio (e.g. 1:2)"`
	Notes        string   `json:"notes,omitempty" jsonschema:"Additional notes about the shot"`
}

// ShotUpload is the payload sent to the machine when recording a new shot.
type ShotUpload struct {
	Metadata   ShotMetadata    `json:"metadata" jsonschema:"Shot metadata"`
	DataPoints []ShotDataPoint `json:"dataPoints" jsonschema:"Ordered shot samples"`
}

// Profile is a brewing parameter set stored on the machine. Parameters are
// owned by the firmware and passed through untouched, in their original order.
type Profile struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Params `json:"parameters"`
}

// SystemStatus is an instantaneous snapshot of the machine.
type SystemStatus struct {
	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
	State       string  `json:"state"`
	HeaterPower float64 `json:"heaterPower"`
	SteamMode   bool    `json:"steamMode"`
}

// Params is an ordered string-keyed map of opaque profile values. The zero
// value is an empty map ready for decoding.
type Params struct {
	*orderedmap.OrderedMap[string, ParamValue]
}

// NewParams returns an empty parameter map.
func NewParams() *Params {
	return &Params{OrderedMap: orderedmap.New[string, ParamValue]()}
}

// Len is nil-safe.
func (p *Params) Len() int {
	if p == nil || p.OrderedMap == nil {
		return 0
	}
	return p.OrderedMap.Len()
}

func (p Params) MarshalJSON() ([]byte, error) {
	if p.OrderedMap == nil {
		return []byte("{}"), nil
	}
	return p.OrderedMap.MarshalJSON()
}

func (p *Params) UnmarshalJSON(data []byte) error {
	if p.OrderedMap == nil {
		p.OrderedMap = orderedmap.New[string, ParamValue]()
	}
	return p.OrderedMap.UnmarshalJSON(data)
}

// ParamKind tags the variant held by a ParamValue.
type ParamKind uint8

const (
	ParamNull ParamKind = iota
	ParamBool
	ParamNumber
	ParamString
	ParamArray
	ParamObject
)

// ParamValue is a tagged JSON value. Exactly one payload field is
// meaningful, selected by Kind.
type ParamValue struct {
	Kind   ParamKind
	Bool   bool
	Number jsoniter.Number
	Str    string
	Array  []ParamValue
	Object *Params
}

func (v ParamValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ParamNull:
		return []byte("null"), nil
	case ParamBool:
		return []byte(strconv.FormatBool(v.Bool)), nil
	case ParamNumber:
		if v.Number == "" {
			return []byte("0"), nil
		}
		return []byte(v.Number), nil
	case ParamString:
		return json.Marshal(v.Str)
	case ParamArray:
		if v.Array == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Array)
	case ParamObject:
		if v.Object == nil {
			return []byte("{}"), nil
		}
		return v.Object.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown parameter kind %d", v.Kind)
	}
}

func (v *ParamValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty parameter value")
	}
	*v = ParamValue{}
	switch data[0] {
	case 'n':
		v.Kind = ParamNull
		return nil
	case 't', 'f':
		v.Kind = ParamBool
		return json.Unmarshal(data, &v.Bool)
	case '"':
		v.Kind = ParamString
		return json.Unmarshal(data, &v.Str)
	case '[':
		v.Kind = ParamArray
		v.Array = []ParamValue{}
		return json.Unmarshal(data, &v.Array)
	case '{':
		v.Kind = ParamObject
		v.Object = NewParams()
		return v.Object.UnmarshalJSON(data)
	default:
		v.Kind = ParamNumber
		return json.Unmarshal(data, &v.Number)
	}
}
