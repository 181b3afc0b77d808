package ncfile

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydroingest/internal/geo"
)

func sampleDataset() dataset {
	return dataset{
		attrs: map[string]any{
			"logger_id": int32(3),
			"deployment": `{"deployment_id": "42", "time_start": "2024-05-01 08:00:00+00:00", ` +
				`"time_end": "2024-05-01 08:00:20+00:00", "position_start": "54.1,12.0", "position_end":"54.3,12.2"}`,
			"contact":     `{"id": "7","first_name":"Ada","last_name": "Lovelace"}`,
			"vessel":      `{"id": "11", "name": "Clupea"}`,
			"deckunit_id": "du-1",
			"platform_id": int32(9),
		},
		order: []string{"time", "latitude", "longitude", "pressure", "temperature", "temperature_raw", "oxygen", "depth"},
		vars: map[string]dataVar{
			"time": {
				values: []float64{0, 10, 20},
				attrs:  map[string]any{"units": "seconds since 2024-05-01 08:00:00"},
			},
			"latitude":  {values: []float64{54.1, 54.2, 54.3}},
			"longitude": {values: []float64{12.0, 12.1, 12.2}},
			"pressure": {
				values: []float64{1010, 1020, 1030},
				attrs:  map[string]any{"sensor_id": int32(1), "units": "mbar"},
			},
			"temperature": {
				values: []float32{10.5, 10.25, -999},
				attrs: map[string]any{
					"sensor_id":   "5",
					"units":       "degC",
					"long_name":   "sea water temperature",
					"sensor_type": `{"sensor_type_id": "2", "manufacturer": "x", "model_name": "y"}`,
					"_FillValue":  float32(-999),
				},
			},
			"temperature_raw": {values: []int32{2100, 2050, 0}},
			"oxygen": {
				values: []float64{8.1, 8.2, 8.3},
				attrs:  map[string]any{"sensor_id": int64(7)},
			},
			"depth": {values: []float64{0.1, 0.2, 0.3}},
		},
	}
}

func TestDecodeMeasurementFile(t *testing.T) {
	f, err := decode("d42.nc", 1234, sampleDataset())
	require.NoError(t, err)

	assert.Equal(t, "d42.nc", f.Name)
	assert.EqualValues(t, 1234, f.Size)
	assert.EqualValues(t, 3, f.LoggerID)
	assert.EqualValues(t, 42, f.DeploymentID)
	assert.EqualValues(t, 7, f.Contact.ID)
	assert.Equal(t, "Lovelace", f.Contact.LastName)
	assert.Equal(t, Vessel{ID: "11", Name: "Clupea"}, f.Vessel)
	assert.Equal(t, "du-1", f.DeckUnitID)
	assert.Equal(t, "9", f.PlatformID)

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	assert.True(t, f.Deployment.Start.Equal(start))
	assert.True(t, f.Deployment.End.Equal(start.Add(20*time.Second)))
	assert.Equal(t, geo.Position{Lat: 54.1, Lon: 12.0}, f.Deployment.StartPosition)

	require.Equal(t, 3, f.Len())
	assert.True(t, f.Time[1].Equal(start.Add(10*time.Second)))
	assert.Equal(t, geo.Position{Lat: 54.2, Lon: 12.1}, f.Position(1))
	assert.Equal(t, []float64{1010, 1020, 1030}, f.Pressure)

	temp, ok := f.Variable("temperature")
	require.True(t, ok)
	assert.EqualValues(t, 2, temp.SensorTypeID)
	assert.Equal(t, "degC", temp.Units)
	assert.InDelta(t, 10.25, temp.Values[1], 1e-9)
	assert.True(t, math.IsNaN(temp.Values[2]), "fill value becomes NaN")

	raw, ok := f.Variable("temperature_raw")
	require.True(t, ok)
	assert.True(t, raw.IsRaw())
	assert.Equal(t, []float64{2100, 2050, 0}, raw.Values)
}

func TestSensorLookupIsOptional(t *testing.T) {
	f, err := decode("d42.nc", 1, sampleDataset())
	require.NoError(t, err)

	id, ok := f.SensorID("temperature")
	assert.True(t, ok)
	assert.EqualValues(t, 5, id)

	_, ok = f.SensorID("depth")
	assert.False(t, ok)
	_, ok = f.SensorID("no_such_column")
	assert.False(t, ok)

	assert.Equal(t, []int64{1, 5, 7}, f.SensorIDs())
	assert.Equal(t, []string{"temperature", "oxygen"}, f.SensorColumns())
}

func TestDecodeRequiresLoggerAndDeployment(t *testing.T) {
	ds := sampleDataset()
	delete(ds.attrs, "logger_id")
	_, err := decode("x.nc", 1, ds)
	assert.ErrorIs(t, err, ErrMissingAttribute)

	ds = sampleDataset()
	delete(ds.attrs, "deployment")
	_, err = decode("x.nc", 1, ds)
	assert.ErrorIs(t, err, ErrMissingAttribute)

	ds = sampleDataset()
	ds.attrs["deployment_id"] = int32(43)
	_, err = decode("x.nc", 1, ds)
	assert.Error(t, err)
}

func TestDecodeRejectsMisalignedSeries(t *testing.T) {
	ds := sampleDataset()
	ds.vars["latitude"] = dataVar{values: []float64{54.1}}
	_, err := decode("x.nc", 1, ds)
	assert.Error(t, err)
}

func TestDecodeTimes(t *testing.T) {
	ref := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := DecodeTimes([]int64{1714550400000000000}, "nanoseconds since 1970-01-01")
	require.NoError(t, err)
	assert.True(t, got[0].Equal(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))

	got, err = DecodeTimes([]float64{1.5}, "days since 1970-01-01 00:00:00")
	require.NoError(t, err)
	assert.True(t, got[0].Equal(ref.Add(36*time.Hour)))

	got, err = DecodeTimes([]string{"2024-05-01T08:00:00Z", "2024-05-01 08:00:10"}, "")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, got[1].Sub(got[0]))

	_, err = DecodeTimes([]float64{1}, "fortnights since 1970-01-01")
	assert.Error(t, err)
	_, err = DecodeTimes([]float64{1}, "seconds")
	assert.Error(t, err)
	_, err = DecodeTimes([]float64{math.NaN()}, "seconds since 1970-01-01")
	assert.Error(t, err)
}

func TestParsePosition(t *testing.T) {
	p, err := ParsePosition(" 54.18 , 12.08 ")
	require.NoError(t, err)
	assert.Equal(t, geo.Position{Lat: 54.18, Lon: 12.08}, p)

	_, err = ParsePosition("54.18")
	assert.Error(t, err)
}

func TestParseContactAcceptsNumericID(t *testing.T) {
	c, err := ParseContact(`{"id": 12, "first_name": "A", "last_name": "B"}`)
	require.NoError(t, err)
	assert.EqualValues(t, 12, c.ID)
}
