package ncfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Reader decodes a measurement file from disk.
type Reader interface {
	Read(path string) (*File, error)
}

// NetCDFReader reads NetCDF classic and NetCDF-4 files.
type NetCDFReader struct{}

// Read opens path and decodes it into a File.
func (NetCDFReader) Read(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat measurement file: %w", err)
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer nc.Close()

	ds := dataset{
		attrs: attributeMap(nc.Attributes()),
		vars:  make(map[string]dataVar),
	}
	for _, name := range nc.ListVariables() {
		v, err := nc.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("read variable %s: %w", name, err)
		}
		ds.order = append(ds.order, name)
		ds.vars[name] = dataVar{values: v.Values, attrs: attributeMap(v.Attributes)}
	}
	return decode(filepath.Base(path), info.Size(), ds)
}

func attributeMap(am api.AttributeMap) map[string]any {
	out := make(map[string]any)
	if am == nil {
		return out
	}
	for _, key := range am.Keys() {
		if v, ok := am.Get(key); ok {
			out[key] = v
		}
	}
	return out
}
