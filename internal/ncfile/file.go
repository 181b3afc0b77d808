// Package ncfile reads measurement files written by the deck unit.
//
// A file holds one logger deployment: global attributes describing the
// deployment, contact and vessel, a time coordinate with latitude, longitude
// and pressure, and any number of parameter variables. A parameter tagged with
// a sensor_id attribute may be accompanied by a "<name>_raw" variable holding
// the uncalibrated readings.
package ncfile

import (
	"sort"
	"strings"
	"time"

	"hydroingest/internal/geo"
)

// RawSuffix marks the uncalibrated variant of a parameter variable.
const RawSuffix = "_raw"

// Coordinate variable names.
const (
	TimeVar      = "time"
	LatitudeVar  = "latitude"
	LongitudeVar = "longitude"
	PressureVar  = "pressure"
)

// Deployment is the summary stored in the "deployment" global attribute.
type Deployment struct {
	ID            int64
	Start         time.Time
	End           time.Time
	StartPosition geo.Position
	EndPosition   geo.Position
}

// Contact is the person responsible for the deployment.
type Contact struct {
	ID        int64
	FirstName string
	LastName  string
}

// Vessel identifies the ship carrying the logger.
type Vessel struct {
	ID   string
	Name string
}

// Variable is one data variable along the time dimension.
type Variable struct {
	Name         string
	Units        string
	LongName     string
	SensorTypeID int64
	Values       []float64

	sensorID  int64
	hasSensor bool
}

// SensorID returns the sensor the variable was recorded with, if tagged.
func (v Variable) SensorID() (int64, bool) {
	return v.sensorID, v.hasSensor
}

// WithSensor returns a copy of v tagged with sensor id.
func (v Variable) WithSensor(id int64) Variable {
	v.sensorID = id
	v.hasSensor = true
	return v
}

// IsRaw reports whether v is the uncalibrated variant of another variable.
func (v Variable) IsRaw() bool {
	return strings.HasSuffix(v.Name, RawSuffix)
}

// File is a decoded measurement file. It is never modified after decoding.
type File struct {
	Name string
	Size int64

	LoggerID     int64
	DeploymentID int64
	Deployment   Deployment
	Contact      Contact
	Vessel       Vessel
	DeckUnitID   string
	PlatformID   string

	Time      []time.Time
	Latitude  []float64
	Longitude []float64
	Pressure  []float64

	// Variables lists the data variables in file order, pressure included.
	Variables []Variable
}

// Len is the number of samples along the time dimension.
func (f *File) Len() int {
	return len(f.Time)
}

// Position returns the sample position at index i.
func (f *File) Position(i int) geo.Position {
	return geo.Position{Lat: f.Latitude[i], Lon: f.Longitude[i]}
}

// Variable looks up a data variable by name.
func (f *File) Variable(name string) (Variable, bool) {
	for _, v := range f.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// SensorID maps a column name to its sensor. Columns without a sensor_id
// attribute report false.
func (f *File) SensorID(column string) (int64, bool) {
	v, ok := f.Variable(column)
	if !ok {
		return 0, false
	}
	return v.SensorID()
}

// SensorIDs returns the sorted distinct sensor ids declared by the file,
// including the pressure sensor. Raw variants are not counted.
func (f *File) SensorIDs() []int64 {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0, len(f.Variables))
	for _, v := range f.Variables {
		if v.IsRaw() {
			continue
		}
		id, ok := v.SensorID()
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SensorColumns returns the names of sensor-tagged, non-raw parameter
// variables in file order. The pressure coordinate is excluded.
func (f *File) SensorColumns() []string {
	cols := make([]string, 0, len(f.Variables))
	for _, v := range f.Variables {
		if v.Name == PressureVar || v.IsRaw() || !v.hasSensor {
			continue
		}
		cols = append(cols, v.Name)
	}
	return cols
}
