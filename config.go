package amplimix

import (
	"github.com/amplimix/amplimix/amplierr"
	"github.com/amplimix/amplimix/applog"
)

// ChannelLayout enumerates the supported output channel layouts. Stereo
// is the ceiling by design: loudspeaker layouts beyond it are out of
// scope.
type ChannelLayout int

const (
	Mono ChannelLayout = iota + 1
	Stereo
)

func (c ChannelLayout) String() string {
	switch c {
	case Mono:
		return "Mono"
	case Stereo:
		return "Stereo"
	default:
		return "Unknown"
	}
}

// SampleFormat enumerates the supported output sample formats.
type SampleFormat int

const (
	Int16 SampleFormat = iota + 1
	Float32
)

func (f SampleFormat) String() string {
	switch f {
	case Int16:
		return "Int16"
	case Float32:
		return "Float32"
	default:
		return "Unknown"
	}
}

// OutputConfig is the device-facing half of the engine configuration.
type OutputConfig struct {
	BufferSize int           `json:"bufferSize"` // frames per device pull
	Frequency  int           `json:"frequency"`  // Hz
	Channels   ChannelLayout `json:"channels"`
	Format     SampleFormat  `json:"format"`
}

// DriverConfig names the platform driver the host wires in; the driver
// itself lives outside this module.
type DriverConfig struct {
	Name string `json:"name"`
}

// Config is the engine configuration. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	Output OutputConfig `json:"output"`
	Driver DriverConfig `json:"driver"`

	// PipelineFile and BusesFile are the declarative asset paths the
	// loader (out of scope here) resolves before handing the engine
	// already-built objects; they are carried so serialized engine state
	// round-trips them.
	PipelineFile string `json:"pipelineFile,omitempty"`
	BusesFile    string `json:"busesFile,omitempty"`

	// RealLayerCapacity bounds how many real mixer layers the
	// virtualisation policy hands out at once.
	RealLayerCapacity int `json:"realLayerCapacity"`

	// Logger receives the engine's structured log output; nil disables
	// logging.
	Logger applog.Logger `json:"-"`
	// ErrorHandler receives errors the engine cannot return to a caller
	// (mix-path conditions reported after the critical section). Nil
	// falls back to amplierr.DefaultHandler.
	ErrorHandler amplierr.Handler `json:"-"`
}

// DefaultConfig returns a 48 kHz stereo float configuration with a
// 1024-frame device buffer and 32 real layers.
func DefaultConfig() Config {
	return Config{
		Output: OutputConfig{
			BufferSize: 1024,
			Frequency:  48000,
			Channels:   Stereo,
			Format:     Float32,
		},
		Driver:            DriverConfig{Name: "null"},
		RealLayerCapacity: 32,
	}
}

func (c Config) validate() error {
	const op = "Config.validate"
	if c.Output.BufferSize <= 0 {
		return amplierr.New(op, amplierr.InvalidParameter, "output buffer size must be positive")
	}
	if c.Output.Frequency <= 0 {
		return amplierr.New(op, amplierr.InvalidParameter, "output frequency must be positive")
	}
	switch c.Output.Channels {
	case Mono, Stereo:
	default:
		return amplierr.New(op, amplierr.InvalidParameter, "output channels must be Mono or Stereo")
	}
	switch c.Output.Format {
	case Int16, Float32:
	default:
		return amplierr.New(op, amplierr.InvalidParameter, "output format must be Int16 or Float32")
	}
	if c.RealLayerCapacity <= 0 {
		return amplierr.New(op, amplierr.InvalidParameter, "real layer capacity must be positive")
	}
	if c.Driver.Name == "" {
		return amplierr.New(op, amplierr.InvalidConfiguration, "driver name is required")
	}
	return nil
}
