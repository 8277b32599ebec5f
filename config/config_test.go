package config

import (
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennylevinsen/gocam/tool"
)

const settingsYAML = `
stock:
  x: 100
  y: 80
  z: 20
process:
  zClearance: 2
  arcEnabled: true
tools:
  - id: 1
    name: quarter
    type: endmill
    fluteDiameter: 0.25
  - id: 2
    type: ballmill
    metric: true
    fluteDiameter: 3
`

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	s, err := Load(viper.New(), writeSettings(t, settingsYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, 100.0, s.Stock.X)
	assert.Equal(t, 20.0, s.StockZ())
	assert.Equal(t, 2.0, s.Process.ZClearance)
	assert.True(t, s.Process.ArcEnabled)
	assert.Equal(t, 15.0, s.Process.ArcResolution, "defaults fill the gaps")
	assert.Equal(t, "string", s.Device.Dialect)
	require.Len(t, s.Tools, 2)
	assert.Equal(t, tool.Ballmill, s.Tools[1].Type)

	table, err := s.ToolTable()
	require.NoError(t, err)
	tl, err := table.Lookup(1)
	require.NoError(t, err)
	assert.InDelta(t, 6.35, tl.Diameter(), 1e-9)
}

func TestLoadFlagsOverride(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--zclearance=5", "--dialect=grbl"}))

	s, err := Load(viper.New(), writeSettings(t, settingsYAML), fs)
	require.NoError(t, err)
	assert.Equal(t, 5.0, s.Process.ZClearance)
	assert.Equal(t, "grbl", s.Device.Dialect)
	assert.True(t, s.Process.ArcEnabled, "unset flags do not clobber the file")
}

func TestValidate(t *testing.T) {
	_, err := Load(viper.New(), writeSettings(t, "tools: []\n"), nil)
	assert.ErrorIs(t, err, ErrStock)

	_, err = Load(viper.New(), writeSettings(t, "stock: {x: 1, y: 1, z: 1}\ntools: [{id: 1}]\n"), nil)
	assert.ErrorIs(t, err, tool.ErrZeroDiameter)

	_, err = Load(viper.New(), writeSettings(t, "stock: {x: 1, y: 1, z: 1}\ndevice: {dialect: marlin}\n"), nil)
	assert.Error(t, err)
}

func TestIndexedStockZ(t *testing.T) {
	s := Settings{Stock: Stock{X: 10, Y: 10, Z: 30, Indexed: true}}
	assert.Equal(t, 15.0, s.StockZ())
}
