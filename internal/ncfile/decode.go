package ncfile

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMissingAttribute reports a required global attribute or variable that the
// file does not carry.
var ErrMissingAttribute = errors.New("missing required attribute")

type dataVar struct {
	values any
	attrs  map[string]any
}

// dataset is the format-neutral view decode works on.
type dataset struct {
	attrs map[string]any
	order []string
	vars  map[string]dataVar
}

func decode(name string, size int64, ds dataset) (*File, error) {
	f := &File{Name: name, Size: size}

	loggerRaw, ok := ds.attrs["logger_id"]
	if !ok {
		return nil, fmt.Errorf("%w: logger_id", ErrMissingAttribute)
	}
	loggerID, err := attrInt(loggerRaw)
	if err != nil {
		return nil, fmt.Errorf("logger_id: %w", err)
	}
	f.LoggerID = loggerID

	if raw, ok := attrString(ds.attrs["deployment"]); ok {
		d, err := ParseDeployment(raw)
		if err != nil {
			return nil, err
		}
		f.Deployment = d
		f.DeploymentID = d.ID
	}
	if raw, ok := ds.attrs["deployment_id"]; ok {
		id, err := attrInt(raw)
		if err != nil {
			return nil, fmt.Errorf("deployment_id: %w", err)
		}
		if f.DeploymentID != 0 && f.DeploymentID != id {
			return nil, fmt.Errorf("deployment_id attribute %d disagrees with deployment summary %d", id, f.DeploymentID)
		}
		f.DeploymentID = id
		f.Deployment.ID = id
	}
	if f.DeploymentID == 0 {
		return nil, fmt.Errorf("%w: deployment_id", ErrMissingAttribute)
	}

	if raw, ok := attrString(ds.attrs["contact"]); ok {
		c, err := ParseContact(raw)
		if err != nil {
			return nil, err
		}
		f.Contact = c
	}
	if raw, ok := attrString(ds.attrs["vessel"]); ok {
		if v, err := ParseVessel(raw); err == nil {
			f.Vessel = v
		}
	}
	f.DeckUnitID, _ = attrString(ds.attrs["deckunit_id"])
	f.PlatformID, _ = attrString(ds.attrs["platform_id"])

	timeVar, ok := ds.vars[TimeVar]
	if !ok {
		return nil, fmt.Errorf("%w: variable %s", ErrMissingAttribute, TimeVar)
	}
	units, _ := attrString(timeVar.attrs["units"])
	if f.Time, err = DecodeTimes(timeVar.values, units); err != nil {
		return nil, fmt.Errorf("decode %s: %w", TimeVar, err)
	}
	n := len(f.Time)
	if first, last, ok := firstLast(f.Time); ok {
		if f.Deployment.Start.IsZero() {
			f.Deployment.Start = first
		}
		if f.Deployment.End.IsZero() {
			f.Deployment.End = last
		}
	}

	coord := func(name string) ([]float64, error) {
		v, ok := ds.vars[name]
		if !ok {
			return nil, fmt.Errorf("%w: variable %s", ErrMissingAttribute, name)
		}
		return seriesValues(name, v, n)
	}
	if f.Latitude, err = coord(LatitudeVar); err != nil {
		return nil, err
	}
	if f.Longitude, err = coord(LongitudeVar); err != nil {
		return nil, err
	}
	if f.Pressure, err = coord(PressureVar); err != nil {
		return nil, err
	}

	for _, varName := range ds.order {
		switch varName {
		case TimeVar, LatitudeVar, LongitudeVar:
			continue
		}
		v, err := decodeVariable(varName, ds.vars[varName], n)
		if err != nil {
			return nil, err
		}
		f.Variables = append(f.Variables, v)
	}
	return f, nil
}

func decodeVariable(name string, dv dataVar, n int) (Variable, error) {
	values, err := seriesValues(name, dv, n)
	if err != nil {
		return Variable{}, err
	}
	v := Variable{Name: name, Values: values}
	v.Units, _ = attrString(dv.attrs["units"])
	v.LongName, _ = attrString(dv.attrs["long_name"])
	if raw, ok := dv.attrs["sensor_id"]; ok {
		id, err := attrInt(raw)
		if err != nil {
			return Variable{}, fmt.Errorf("variable %s sensor_id: %w", name, err)
		}
		v.sensorID, v.hasSensor = id, true
	}
	if raw, ok := attrString(dv.attrs["sensor_type"]); ok {
		if typeID, err := parseSensorType(raw); err == nil {
			v.SensorTypeID = typeID
		}
	}
	return v, nil
}

// seriesValues converts a variable to float64 samples, mapping fill values
// to NaN.
func seriesValues(name string, dv dataVar, n int) ([]float64, error) {
	values, err := toFloats(dv.values)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	if len(values) != n {
		return nil, fmt.Errorf("variable %s has %d samples, time has %d", name, len(values), n)
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		fill, ok := attrFloat(dv.attrs[key])
		if !ok || math.IsNaN(fill) {
			continue
		}
		for i, v := range values {
			if v == fill {
				values[i] = math.NaN()
			}
		}
	}
	return values, nil
}

// firstLast returns the first and last instants of ts.
func firstLast(ts []time.Time) (time.Time, time.Time, bool) {
	if len(ts) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return ts[0], ts[len(ts)-1], true
}
