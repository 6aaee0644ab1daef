// Package config loads the boot file: what hardware the node has and where
// its collaborators live. Operator settings edited over HTTP are not here;
// they belong to the configuration store.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"sensornode-go/errcode"
	"sensornode-go/services/sensors"
	"sensornode-go/services/store"
	"sensornode-go/services/weather"
	"sensornode-go/types"
	"sensornode-go/x/strx"
)

const DefaultPath = "sensornode.yaml"

type Config struct {
	Node    Node             `yaml:"node"`
	HTTP    HTTP             `yaml:"http"`
	MQTT    MQTT             `yaml:"mqtt"`
	Console Console          `yaml:"console"`
	Log     Log              `yaml:"log"`
	Weather Weather          `yaml:"weather"`
	Display Display          `yaml:"display"`
	Sensors []sensors.Params `yaml:"sensors"`
}

type Node struct {
	Name       string `yaml:"name"`
	RootTopic  string `yaml:"root_topic"`
	DataDir    string `yaml:"data_dir"`
	ConfigFile string `yaml:"config_file"`
	Page       string `yaml:"page"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

// MQTT is disabled while Broker is empty.
type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// Console is disabled while Port is empty.
type Console struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Weather struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	CityID  string `yaml:"city_id"`
	APIKey  string `yaml:"api_key"`
}

type Display struct {
	Terminal bool `yaml:"terminal"`
	Width    int  `yaml:"width"`
}

// Default is the configuration used when no boot file exists.
func Default() Config {
	d := types.DefaultNodeConfig()
	return Config{
		Node: Node{
			Name:       d.NodeName,
			RootTopic:  d.RootTopic,
			DataDir:    "data",
			ConfigFile: store.DefaultFile,
			Page:       store.DefaultPage,
		},
		HTTP:    HTTP{Addr: ":8080"},
		Console: Console{Baud: 115200},
		Log:     Log{Level: "info"},
		Weather: Weather{URL: weather.DefaultBaseURL},
		Display: Display{Width: 28},
	}
}

// EmbeddedConfigLookup resolves a built-in profile by device name.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Load layers the defaults, the embedded profile for device (if any) and the
// file at path. A missing file is not an error.
func Load(path, device string, log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg := Default()

	if device != "" {
		raw, ok := EmbeddedConfigLookup(device)
		if !ok {
			return cfg, &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "no embedded profile for device " + device}
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "profile " + device, Err: err}
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Info("boot file not found, using defaults", "file", path)
		case err != nil:
			return cfg, &errcode.E{C: errcode.OpenFailed, Op: "config", Msg: path, Err: err}
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: path, Err: err}
			}
		}
	}

	cfg.normalise()
	return cfg, nil
}

func (c *Config) normalise() {
	c.Node.Name = strx.Field(c.Node.Name, types.NodeNameMaxLen)
	c.Node.RootTopic = strx.Field(c.Node.RootTopic, types.RootTopicMaxLen)
	c.Node.ConfigFile = strx.Coalesce(c.Node.ConfigFile, store.DefaultFile)
	c.Node.Page = strx.Coalesce(c.Node.Page, store.DefaultPage)
	if c.MQTT.QoS > 2 {
		c.MQTT.QoS = 2
	}
	if c.Console.Baud <= 0 {
		c.Console.Baud = 115200
	}
	if len(c.Sensors) > types.MaxSensors {
		c.Sensors = c.Sensors[:types.MaxSensors]
	}
}

// NodeDefaults seeds the operator settings before the store is read.
func (c Config) NodeDefaults() types.NodeConfig {
	d := types.DefaultNodeConfig()
	d.NodeName = strx.Coalesce(c.Node.Name, d.NodeName)
	d.RootTopic = strx.Coalesce(c.Node.RootTopic, d.RootTopic)
	d.DisplayEnabled = c.Display.Terminal
	return d
}

// SlogLevel maps the level name; anything unknown is info.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
