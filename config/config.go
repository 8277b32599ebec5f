// Package config loads device, process and stock settings together with the
// tool table.
package config

import (
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kennylevinsen/gocam/tool"
)

var ErrStock = errors.New("stock dimensions missing")

type Device struct {
	SpindleMax float64 `mapstructure:"spindleMax"`
	// Dialect selects the G-code generator: "string" or "grbl".
	Dialect   string `mapstructure:"dialect"`
	Precision int    `mapstructure:"precision"`
}

type Process struct {
	FastFeed   float64 `mapstructure:"fastFeed"`
	FastFeedZ  float64 `mapstructure:"fastFeedZ"`
	ZClearance float64 `mapstructure:"zClearance"`

	ArcEnabled    bool    `mapstructure:"arcEnabled"`
	ArcTolerance  float64 `mapstructure:"arcTolerance"`
	ArcResolution float64 `mapstructure:"arcResolution"`
	ArcMaxRadius  float64 `mapstructure:"arcMaxRadius"`
	ArcZTolerance float64 `mapstructure:"arcZTolerance"`

	DepthFirst bool    `mapstructure:"depthFirst"`
	EaseDown   bool    `mapstructure:"easeDown"`
	EaseAngle  float64 `mapstructure:"easeAngle"`
	FullEngage float64 `mapstructure:"fullEngage"`
	InnerFirst bool    `mapstructure:"innerFirst"`
	ForceZMax  bool    `mapstructure:"forceZMax"`

	// Used when flattening imported arcs.
	MaxArcDeviation  float64 `mapstructure:"maxArcDeviation"`
	MinArcLineLength float64 `mapstructure:"minArcLineLength"`
}

type Stock struct {
	X       float64 `mapstructure:"x"`
	Y       float64 `mapstructure:"y"`
	Z       float64 `mapstructure:"z"`
	Indexed bool    `mapstructure:"indexed"`
}

type Settings struct {
	Device  Device      `mapstructure:"device"`
	Process Process     `mapstructure:"process"`
	Stock   Stock       `mapstructure:"stock"`
	Tools   []tool.Tool `mapstructure:"tools"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("device.spindleMax", 24000)
	v.SetDefault("device.dialect", "string")
	v.SetDefault("device.precision", 4)

	v.SetDefault("process.fastFeed", 6000)
	v.SetDefault("process.fastFeedZ", 300)
	v.SetDefault("process.zClearance", 1)
	v.SetDefault("process.arcEnabled", false)
	v.SetDefault("process.arcTolerance", 0.01)
	v.SetDefault("process.arcResolution", 15)
	v.SetDefault("process.arcMaxRadius", 0)
	v.SetDefault("process.arcZTolerance", 0.01)
	v.SetDefault("process.depthFirst", false)
	v.SetDefault("process.easeDown", false)
	v.SetDefault("process.easeAngle", 10)
	v.SetDefault("process.fullEngage", 0.8)
	v.SetDefault("process.innerFirst", false)
	v.SetDefault("process.forceZMax", false)
	v.SetDefault("process.maxArcDeviation", 0.002)
	v.SetDefault("process.minArcLineLength", 0.01)
}

// Flags registers the settings that can be overridden on the command line.
func Flags(fs *flag.FlagSet) {
	fs.String("dialect", "string", "G-code dialect (string, grbl)")
	fs.Int("precision", 4, "Precision to use for exported gcode")
	fs.Float64("zclearance", 1, "Clearance above terrain for travel moves")
	fs.Bool("arcs", false, "Coalesce cuts into arcs")
	fs.Float64("arctolerance", 0.01, "Maximum deviation from an ideal arc")
	fs.Bool("depthfirst", false, "Finish each region before moving to the next")
	fs.Bool("easedown", false, "Ramp into closed paths instead of plunging")
	fs.Bool("forcezmax", false, "Always travel at the safe height")
}

var flagKeys = map[string]string{
	"dialect":      "device.dialect",
	"precision":    "device.precision",
	"zclearance":   "process.zClearance",
	"arcs":         "process.arcEnabled",
	"arctolerance": "process.arcTolerance",
	"depthfirst":   "process.depthFirst",
	"easedown":     "process.easeDown",
	"forcezmax":    "process.forceZMax",
}

// Load reads settings from path (optional), GOCAM_* environment variables and
// any flags registered with Flags.
func Load(v *viper.Viper, path string, fs *flag.FlagSet) (*Settings, error) {
	SetDefaults(v)
	v.SetEnvPrefix("GOCAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("could not decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if s.Stock.X <= 0 || s.Stock.Y <= 0 || s.Stock.Z <= 0 {
		return fmt.Errorf("%w: x=%g y=%g z=%g", ErrStock, s.Stock.X, s.Stock.Y, s.Stock.Z)
	}
	if s.Process.ZClearance < 0 || s.Process.ArcTolerance < 0 || s.Process.ArcZTolerance < 0 {
		return errors.New("tolerances must not be negative")
	}
	if s.Process.ArcEnabled && s.Process.ArcResolution <= 0 {
		return errors.New("arc resolution must be positive")
	}
	switch s.Device.Dialect {
	case "string", "grbl":
	default:
		return fmt.Errorf("unknown dialect %q", s.Device.Dialect)
	}
	if _, err := s.ToolTable(); err != nil {
		return err
	}
	return nil
}

func (s *Settings) ToolTable() (*tool.Table, error) {
	return tool.NewTable(s.Tools)
}

// StockZ is the height of the stock top. Indexed stock is centered on the
// rotary axis.
func (s *Settings) StockZ() float64 {
	if s.Stock.Indexed {
		return s.Stock.Z / 2
	}
	return s.Stock.Z
}
