package ncfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"hydroingest/internal/geo"
)

// flexString accepts a JSON string or number. The deck unit writes ids as
// quoted strings.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	*s = flexString(data)
	return nil
}

type deploymentAttr struct {
	DeploymentID  flexString `json:"deployment_id"`
	TimeStart     flexString `json:"time_start"`
	TimeEnd       flexString `json:"time_end"`
	PositionStart flexString `json:"position_start"`
	PositionEnd   flexString `json:"position_end"`
}

type contactAttr struct {
	ID        flexString `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
}

type vesselAttr struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

type sensorTypeAttr struct {
	SensorTypeID flexString `json:"sensor_type_id"`
}

// ParseDeployment decodes the "deployment" global attribute.
func ParseDeployment(raw string) (Deployment, error) {
	var attr deploymentAttr
	if err := json.Unmarshal([]byte(raw), &attr); err != nil {
		return Deployment{}, fmt.Errorf("deployment attribute: %w", err)
	}
	var (
		d   Deployment
		err error
	)
	if attr.DeploymentID != "" {
		if d.ID, err = parseInt(string(attr.DeploymentID)); err != nil {
			return Deployment{}, fmt.Errorf("deployment_id: %w", err)
		}
	}
	if attr.TimeStart != "" {
		if d.Start, err = ParseTimestamp(string(attr.TimeStart)); err != nil {
			return Deployment{}, fmt.Errorf("deployment time_start: %w", err)
		}
	}
	if attr.TimeEnd != "" {
		if d.End, err = ParseTimestamp(string(attr.TimeEnd)); err != nil {
			return Deployment{}, fmt.Errorf("deployment time_end: %w", err)
		}
	}
	if attr.PositionStart != "" {
		if d.StartPosition, err = ParsePosition(string(attr.PositionStart)); err != nil {
			return Deployment{}, fmt.Errorf("deployment position_start: %w", err)
		}
	}
	if attr.PositionEnd != "" {
		if d.EndPosition, err = ParsePosition(string(attr.PositionEnd)); err != nil {
			return Deployment{}, fmt.Errorf("deployment position_end: %w", err)
		}
	}
	return d, nil
}

// ParseContact decodes the "contact" global attribute.
func ParseContact(raw string) (Contact, error) {
	var attr contactAttr
	if err := json.Unmarshal([]byte(raw), &attr); err != nil {
		return Contact{}, fmt.Errorf("contact attribute: %w", err)
	}
	c := Contact{FirstName: attr.FirstName, LastName: attr.LastName}
	if attr.ID != "" {
		id, err := parseInt(string(attr.ID))
		if err != nil {
			return Contact{}, fmt.Errorf("contact id: %w", err)
		}
		c.ID = id
	}
	return c, nil
}

// ParseVessel decodes the "vessel" global attribute.
func ParseVessel(raw string) (Vessel, error) {
	var attr vesselAttr
	if err := json.Unmarshal([]byte(raw), &attr); err != nil {
		return Vessel{}, fmt.Errorf("vessel attribute: %w", err)
	}
	return Vessel{ID: string(attr.ID), Name: attr.Name}, nil
}

func parseSensorType(raw string) (int64, error) {
	var attr sensorTypeAttr
	if err := json.Unmarshal([]byte(raw), &attr); err != nil {
		return 0, fmt.Errorf("sensor_type attribute: %w", err)
	}
	if attr.SensorTypeID == "" {
		return 0, nil
	}
	return parseInt(string(attr.SensorTypeID))
}

// ParsePosition decodes "lat,lon".
func ParsePosition(raw string) (geo.Position, error) {
	lat, lon, ok := strings.Cut(raw, ",")
	if !ok {
		return geo.Position{}, fmt.Errorf("position %q: expected \"lat,lon\"", raw)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return geo.Position{}, fmt.Errorf("position %q latitude: %w", raw, err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return geo.Position{}, fmt.Errorf("position %q longitude: %w", raw, err)
	}
	return geo.Position{Lat: la, Lon: lo}, nil
}

// ParseTimestamp parses a textual timestamp in any common layout. Values
// without a zone are taken as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseInt(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	return int64(f), nil
}

// attrString renders a decoded attribute value as text.
func attrString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case []byte:
		return string(val), true
	case []string:
		return strings.Join(val, ""), len(val) > 0
	}
	if f, ok := attrFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return fmt.Sprint(v), true
}

// attrInt converts a numeric or textual attribute to an integer.
func attrInt(v any) (int64, error) {
	if s, ok := v.(string); ok {
		return parseInt(s)
	}
	f, ok := attrFloat(v)
	if !ok {
		return 0, fmt.Errorf("attribute value %v (%T) is not numeric", v, v)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("attribute value %v is not an integer", f)
	}
	return int64(f), nil
}

// attrFloat converts a scalar or one-element numeric attribute.
func attrFloat(v any) (float64, bool) {
	values, err := toFloats(v)
	if err != nil || len(values) != 1 {
		return 0, false
	}
	return values[0], true
}

// toFloats widens any numeric scalar or slice to []float64.
func toFloats(v any) ([]float64, error) {
	switch val := v.(type) {
	case []float64:
		return append([]float64(nil), val...), nil
	case []float32:
		return widen(val), nil
	case []int64:
		return widen(val), nil
	case []int32:
		return widen(val), nil
	case []int16:
		return widen(val), nil
	case []int8:
		return widen(val), nil
	case []uint64:
		return widen(val), nil
	case []uint32:
		return widen(val), nil
	case []uint16:
		return widen(val), nil
	case []uint8:
		return widen(val), nil
	case float64:
		return []float64{val}, nil
	case float32:
		return []float64{float64(val)}, nil
	case int64:
		return []float64{float64(val)}, nil
	case int32:
		return []float64{float64(val)}, nil
	case int16:
		return []float64{float64(val)}, nil
	case int8:
		return []float64{float64(val)}, nil
	case int:
		return []float64{float64(val)}, nil
	case uint64:
		return []float64{float64(val)}, nil
	case uint32:
		return []float64{float64(val)}, nil
	case uint16:
		return []float64{float64(val)}, nil
	case uint8:
		return []float64{float64(val)}, nil
	}
	return nil, fmt.Errorf("unsupported numeric type %T", v)
}

type number interface {
	~float32 | ~int64 | ~int32 | ~int16 | ~int8 | ~uint64 | ~uint32 | ~uint16 | ~uint8
}

func widen[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
