// Parrot uses flags and a single config file for configuration.
// A config file is a JSON object whose fields are named after the flags they set.

package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var configFilePath = flag.String("config_file", "parrot.json", "Path to the configuration file.")

// InitFlags initializes the flags from the config file specified by the -config_file flag.
// It should be called after defining all flags and before using them. A missing config file is not an error.
func InitFlags() error {
	flag.Parse()

	if *configFilePath == "" {
		slog.Info("Config file not specified. Skipping config initialization.")
		return nil
	}
	conf, err := readConfigFile(*configFilePath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file does not exist.", "path", *configFilePath, "error", err)
		return nil
	}
	if err != nil {
		return err
	}
	if err := setConfigFlags(conf); err != nil {
		return fmt.Errorf("failed to set flags from config file %s: %w", *configFilePath, err)
	}
	return nil
}

// readConfigFile reads and parses the JSON config at `path`.
func readConfigFile(path string) (*structpb.Struct, error) {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	conf := new(structpb.Struct)
	if err := protojson.Unmarshal(configBytes, conf); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return conf, nil
}

// valueToFlagString converts a JSON value to its string representation suitable for flag setting.
func valueToFlagString(v *structpb.Value) (string, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue), nil
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64), nil
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NullValue:
		return "", errors.New("null is not a flag value")
	default: // Lists and nested objects.
		return "", fmt.Errorf("unsupported value: %s", v.String())
	}
}

// setConfigFlags sets every field of `conf` on the flag of the same name.
func setConfigFlags(conf *structpb.Struct) error {
	var errs []error
	for flagName, value := range conf.GetFields() {
		if !slices.Contains(Schema, flagName) || flag.Lookup(flagName) == nil {
			errs = append(errs, fmt.Errorf("unknown config entry '%s'", flagName))
			continue
		}
		flagValue, err := valueToFlagString(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to convert config entry '%s': %w", flagName, err))
			continue
		}
		if err := flag.Set(flagName, flagValue); err != nil {
			errs = append(errs, fmt.Errorf("failed to set flag %s: %w", flagName, err))
		}
	}
	return errors.Join(errs...)
}
