package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Duration wraps time.Duration with YAML string parsing ("10s", "500ms").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Param is one monitor module parameter.
type Param struct {
	Name  string
	Value string
}

// Params preserves the parameter order of the YAML mapping, since modules
// scan parameters front to back.
type Params []Param

func (p *Params) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("params must be a mapping")
	}
	// A mapping node's content alternates key and value nodes in document
	// order.
	for i := 0; i+1 < len(value.Content); i += 2 {
		var name, val string
		if err := value.Content[i].Decode(&name); err != nil {
			return err
		}
		if err := value.Content[i+1].Decode(&val); err != nil {
			return err
		}
		*p = append(*p, Param{Name: name, Value: val})
	}
	return nil
}

// ServerConfig defines one monitored backend server.
type ServerConfig struct {
	Name string `yaml:"name" validate:"required"`
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required,min=1,max=65535"`
	// Optional credentials overriding the monitor defaults.
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// MonitorConfig defines one monitor.
type MonitorConfig struct {
	Name           string         `yaml:"name" validate:"required"`
	Module         string         `yaml:"module" validate:"required"`
	Interval       Duration       `yaml:"interval"`
	ConnectTimeout Duration       `yaml:"connect_timeout"`
	ReadTimeout    Duration       `yaml:"read_timeout"`
	WriteTimeout   Duration       `yaml:"write_timeout"`
	User           string         `yaml:"user" validate:"required"`
	Password       string         `yaml:"password"`
	Events         string         `yaml:"events"`
	Script         string         `yaml:"script"`
	Params         Params         `yaml:"params"`
	Servers        []ServerConfig `yaml:"servers" validate:"required,min=1,dive"`
}

// MonitorsFile is the top-level cluster definition document.
type MonitorsFile struct {
	Monitors []MonitorConfig `yaml:"monitors" validate:"required,min=1,dive"`
}

// LoadMonitors parses and validates a cluster definition file. Any parse
// or validation error fails the whole load.
func LoadMonitors(path string) (*MonitorsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read monitors file %s: %w", path, err)
	}
	return ParseMonitors(raw)
}

// ParseMonitors parses and validates a cluster definition document.
func ParseMonitors(raw []byte) (*MonitorsFile, error) {
	var file MonitorsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse monitors file: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("validate monitors file: %w", err)
	}

	seen := make(map[string]bool, len(file.Monitors))
	for _, mon := range file.Monitors {
		if seen[mon.Name] {
			return nil, fmt.Errorf("validate monitors file: duplicate monitor name %q", mon.Name)
		}
		seen[mon.Name] = true
	}
	return &file, nil
}
