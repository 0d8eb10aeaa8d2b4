package config

import (
	"flag"
	"fmt"
	"slices"
	"strings"
)

// Schema lists the flags a config file may set.
var Schema = []string{
	// Logging.
	"log_handler_type",
	"log_level",
	// Redis protocol port.
	"address",
	// Metrics.
	"metrics_address",
	// Scope registry.
	"shard_count",
	"scopes_per_shard",
	"cache_capacity",
	"weighting",
	"scope_idle_ttl",
	"scope_tick_interval",
	// Flood detector.
	"similarity_threshold",
	"exact_capacity",
	"exact_false_positive_rate",
}

// skippedSchemaFlags is the list of command line flags that can't be set from a config file.
var skippedSchemaFlags = []string{"print_version", "config_file"}

// CollectUnregisteredFlags collects all flags that haven't been registered in the config schema.
// An error exists in the results corresponding to each unregistered flag.
func CollectUnregisteredFlags() []error {
	errs := make([]error, 0)
	flag.VisitAll(func(f *flag.Flag) {
		if strings.HasPrefix(f.Name, "test.") { // Skip test flags.
			return
		}
		if slices.Contains(skippedSchemaFlags, f.Name) {
			return
		}
		if !slices.Contains(Schema, f.Name) {
			errs = append(errs, fmt.Errorf("flag '%s' has not been defined in config schema", f.Name))
		}
	})
	return errs
}
