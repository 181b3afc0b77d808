package ncfile

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydroingest/internal/geo"
)

func attrs(t *testing.T, keys []string, values map[string]any) api.AttributeMap {
	t.Helper()
	om, err := util.NewOrderedMap(keys, values)
	require.NoError(t, err)
	return om
}

// writeClassicFile writes a three-sample deployment file in the classic
// format the deck unit produces.
func writeClassicFile(t *testing.T, path string) {
	t.Helper()
	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	require.NoError(t, cw.AddGlobalAttrs(attrs(t,
		[]string{"logger_id", "deployment_id", "deployment", "contact", "vessel", "deckunit_id"},
		map[string]any{
			"logger_id":     int32(3),
			"deployment_id": int32(42),
			"deployment": `{"deployment_id": "42", "time_start": "2024-05-01 08:00:00+00:00", ` +
				`"time_end": "2024-05-01 08:00:20+00:00", "position_start": "54.1,12.0", "position_end": "54.3,12.2"}`,
			"contact":     `{"id": "7", "first_name": "Ada", "last_name": "Lovelace"}`,
			"vessel":      `{"id": "11", "name": "Clupea"}`,
			"deckunit_id": "du-1",
		})))

	dims := []string{"time"}
	vars := []struct {
		name string
		v    api.Variable
	}{
		{"time", api.Variable{
			Values:     []float64{0, 10, 20},
			Dimensions: dims,
			Attributes: attrs(t, []string{"units"}, map[string]any{"units": "seconds since 2024-05-01 08:00:00"}),
		}},
		{"latitude", api.Variable{Values: []float64{54.1, 54.2, 54.3}, Dimensions: dims}},
		{"longitude", api.Variable{Values: []float64{12.0, 12.1, 12.2}, Dimensions: dims}},
		{"pressure", api.Variable{
			Values:     []float64{1010, 1020, 1030},
			Dimensions: dims,
			Attributes: attrs(t, []string{"sensor_id", "units"}, map[string]any{"sensor_id": int32(1), "units": "mbar"}),
		}},
		{"temperature", api.Variable{
			Values:     []float32{10.5, 10.25, -999},
			Dimensions: dims,
			Attributes: attrs(t,
				[]string{"sensor_id", "units", "_FillValue"},
				map[string]any{"sensor_id": int32(5), "units": "degC", "_FillValue": float32(-999)}),
		}},
		{"temperature_raw", api.Variable{Values: []int32{2100, 2050, 0}, Dimensions: dims}},
		{"depth", api.Variable{Values: []float64{0.1, 0.2, 0.3}, Dimensions: dims}},
	}
	for _, v := range vars {
		require.NoError(t, cw.AddVar(v.name, v.v), v.name)
	}
	require.NoError(t, cw.Close())
}

func TestNetCDFReaderDecodesClassicFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d42.nc")
	writeClassicFile(t, path)

	f, err := NetCDFReader{}.Read(path)
	require.NoError(t, err)

	assert.Equal(t, "d42.nc", f.Name)
	assert.Positive(t, f.Size)
	assert.EqualValues(t, 3, f.LoggerID)
	assert.EqualValues(t, 42, f.DeploymentID)
	assert.EqualValues(t, 42, f.Deployment.ID)
	assert.Equal(t, "Lovelace", f.Contact.LastName)
	assert.Equal(t, Vessel{ID: "11", Name: "Clupea"}, f.Vessel)
	assert.Equal(t, "du-1", f.DeckUnitID)
	assert.Equal(t, geo.Position{Lat: 54.3, Lon: 12.2}, f.Deployment.EndPosition)

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.Equal(t, 3, f.Len())
	for i, want := range []time.Time{start, start.Add(10 * time.Second), start.Add(20 * time.Second)} {
		assert.True(t, f.Time[i].Equal(want), "time[%d] = %v", i, f.Time[i])
	}
	assert.Equal(t, geo.Position{Lat: 54.2, Lon: 12.1}, f.Position(1))
	assert.Equal(t, []float64{1010, 1020, 1030}, f.Pressure)

	temp, ok := f.Variable("temperature")
	require.True(t, ok)
	assert.Equal(t, "degC", temp.Units)
	assert.InDelta(t, 10.25, temp.Values[1], 1e-6)
	assert.True(t, math.IsNaN(temp.Values[2]), "fill value becomes NaN")

	raw, ok := f.Variable("temperature_raw")
	require.True(t, ok)
	assert.True(t, raw.IsRaw())
	assert.Equal(t, []float64{2100, 2050, 0}, raw.Values)

	_, ok = f.SensorID("depth")
	assert.False(t, ok, "depth carries no sensor_id")
	depth, ok := f.Variable("depth")
	require.True(t, ok)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, depth.Values)

	assert.Equal(t, []int64{1, 5}, f.SensorIDs())
	assert.Equal(t, []string{"temperature"}, f.SensorColumns())
}

func TestNetCDFReaderRejectsMissingFile(t *testing.T) {
	_, err := NetCDFReader{}.Read(filepath.Join(t.TempDir(), "absent.nc"))
	assert.Error(t, err)
}
