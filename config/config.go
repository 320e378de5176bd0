// Package config loads the YAML document describing signal instances,
// slots and telemetry writer settings, and can hot-reload it from disk
// (grounded on the teacher's engine/internal/runtime.RuntimeConfigManager
// and HotReloadSystem).
package config

import (
	"crypto/sha256"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/signal"
)

// ParameterSpec is the YAML shape of a SignalParameter descriptor.
type ParameterSpec struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// SlotSpec is the YAML shape of one instance/signal slot definition.
type SlotSpec struct {
	Instance         string          `yaml:"instance"`
	Signal           string          `yaml:"signal"`
	Parameters       []ParameterSpec `yaml:"parameters"`
	Results          []ParameterSpec `yaml:"results"`
	DefaultTimeoutMs int64           `yaml:"defaultTimeoutMs"`
	AutoArchiveMs    int64           `yaml:"autoArchiveMs"`
	QueueCapacity    int             `yaml:"queueCapacity"`
}

// TelemetrySpec configures the shared telemetry writer.
type TelemetrySpec struct {
	ChunkIntervalUs int64 `yaml:"chunkIntervalUs"`
}

// Document is the top-level YAML configuration for a signal-and-telemetry
// core deployment.
type Document struct {
	Telemetry TelemetrySpec `yaml:"telemetry"`
	Slots     []SlotSpec    `yaml:"slots"`

	checksum string
}

// Checksum returns the sha256 (hex) of the raw bytes the document was
// parsed from, used by the hot-reloader to detect no-op writes.
func (d *Document) Checksum() string { return d.checksum }

// Load reads and parses the YAML document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	sum := sha256.Sum256(data)
	doc.checksum = fmt.Sprintf("%x", sum)
	return &doc, nil
}

func parameterType(tag string) (signal.ParameterType, error) {
	switch tag {
	case "string":
		return signal.ParamString, nil
	case "double":
		return signal.ParamDouble, nil
	case "int":
		return signal.ParamInt, nil
	case "bool":
		return signal.ParamBool, nil
	case "uuid":
		return signal.ParamUUID, nil
	default:
		return 0, fmt.Errorf("config: unknown parameter type %q", tag)
	}
}

func toSignalParameters(specs []ParameterSpec) ([]signal.SignalParameter, error) {
	out := make([]signal.SignalParameter, 0, len(specs))
	for _, s := range specs {
		typ, err := parameterType(s.Type)
		if err != nil {
			return nil, err
		}
		p, err := signal.NewSignalParameter(s.Name, typ, s.Required)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Apply materializes every slot in the document against handler,
// registering instances as needed. It is idempotent only in the sense
// that re-applying a document whose instances/slots already exist returns
// the first error (duplicate); hosts that hot-reload should diff against
// what's already registered, or start from an empty handler.
func Apply(doc *Document, handler *signal.Handler) error {
	for _, slotSpec := range doc.Slots {
		inst, err := handler.GetInstance(slotSpec.Instance)
		if err != nil {
			inst, err = handler.RegisterInstance(slotSpec.Instance)
			if err != nil {
				return fmt.Errorf("config: register instance %s: %w", slotSpec.Instance, err)
			}
		}

		params, err := toSignalParameters(slotSpec.Parameters)
		if err != nil {
			return fmt.Errorf("config: slot %s.%s: %w", slotSpec.Instance, slotSpec.Signal, err)
		}
		results, err := toSignalParameters(slotSpec.Results)
		if err != nil {
			return fmt.Errorf("config: slot %s.%s: %w", slotSpec.Instance, slotSpec.Signal, err)
		}

		cfg := signal.SlotConfig{
			Parameters:       params,
			Results:          results,
			DefaultTimeoutMs: slotSpec.DefaultTimeoutMs,
			AutoArchiveMs:    slotSpec.AutoArchiveMs,
			QueueCapacity:    slotSpec.QueueCapacity,
		}
		if _, err := inst.AddSignalDefinition(slotSpec.Signal, cfg); err != nil {
			return fmt.Errorf("config: add signal definition %s.%s: %w", slotSpec.Instance, slotSpec.Signal, err)
		}
	}
	return nil
}
