package config

import (
	"flag"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nobletooth/parrot/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	testCapacity  = flag.Int("config_test_capacity", 10, "Test only.")
	testThreshold = flag.Float64("config_test_threshold", 0.5, "Test only.")
	testVerbose   = flag.Bool("config_test_verbose", false, "Test only.")
	testTTL       = flag.Duration("config_test_ttl", time.Minute, "Test only.")
	testName      = flag.String("config_test_name", "parrot", "Test only.")
)

// withTestSchema makes the test flags configurable for the duration of the test.
func withTestSchema(t *testing.T) {
	t.Helper()
	prevSchema := Schema
	Schema = append(slices.Clone(Schema), "config_test_capacity", "config_test_threshold", "config_test_verbose",
		"config_test_ttl", "config_test_name")
	t.Cleanup(func() { Schema = prevSchema })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parrot.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func resetTestFlags(t *testing.T) {
	t.Helper()
	utils.SetTestFlags(t, map[string]string{
		"config_test_capacity":  "10",
		"config_test_threshold": "0.5",
		"config_test_verbose":   "false",
		"config_test_ttl":       "1m",
		"config_test_name":      "parrot",
	})
}

func TestReadConfigFile(t *testing.T) {
	conf, err := readConfigFile(writeConfig(t, `{"config_test_capacity": 64, "config_test_name": "polly"}`))
	require.NoError(t, err)
	assert.Len(t, conf.GetFields(), 2)
	assert.Equal(t, 64.0, conf.GetFields()["config_test_capacity"].GetNumberValue())

	_, err = readConfigFile(writeConfig(t, `{"config_test_capacity": `))
	assert.Error(t, err)

	_, err = readConfigFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSetConfigFlags(t *testing.T) {
	withTestSchema(t)
	resetTestFlags(t)

	conf, err := readConfigFile(writeConfig(t, `{
		"config_test_capacity": 64,
		"config_test_threshold": 0.85,
		"config_test_verbose": true,
		"config_test_ttl": "1m30s",
		"config_test_name": "polly"
	}`))
	require.NoError(t, err)
	require.NoError(t, setConfigFlags(conf))

	assert.Equal(t, 64, *testCapacity)
	assert.Equal(t, 0.85, *testThreshold)
	assert.True(t, *testVerbose)
	assert.Equal(t, 90*time.Second, *testTTL)
	assert.Equal(t, "polly", *testName)
}

func TestSetConfigFlags_Errors(t *testing.T) {
	withTestSchema(t)
	resetTestFlags(t)

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{name: "unknown entry", fields: map[string]any{"no_such_flag": 1}},
		{name: "flag outside schema", fields: map[string]any{"config_file": "other.json"}},
		{name: "null value", fields: map[string]any{"config_test_name": nil}},
		{name: "nested object", fields: map[string]any{"config_test_name": map[string]any{"a": 1}}},
		{name: "list value", fields: map[string]any{"config_test_name": []any{"a"}}},
		{name: "unparsable value", fields: map[string]any{"config_test_capacity": "many"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conf, err := structpb.NewStruct(test.fields)
			require.NoError(t, err)
			assert.Error(t, setConfigFlags(conf))
		})
	}
}

func TestInitFlags(t *testing.T) {
	withTestSchema(t)
	resetTestFlags(t)

	utils.SetTestFlag(t, "config_file", filepath.Join(t.TempDir(), "missing.json"))
	assert.NoError(t, InitFlags())

	utils.SetTestFlag(t, "config_file", "")
	assert.NoError(t, InitFlags())

	utils.SetTestFlag(t, "config_file", writeConfig(t, `{"config_test_capacity": 7}`))
	assert.NoError(t, InitFlags())
	assert.Equal(t, 7, *testCapacity)

	utils.SetTestFlag(t, "config_file", writeConfig(t, `{"config_test_capacity": 7, "bogus": true}`))
	assert.Error(t, InitFlags())
}

func TestCollectUnregisteredFlags(t *testing.T) {
	errs := CollectUnregisteredFlags()
	assert.Len(t, errs, 5) // The test flags above.
	for _, err := range errs {
		assert.Contains(t, err.Error(), "config_test_")
	}

	withTestSchema(t)
	assert.Empty(t, CollectUnregisteredFlags())
}
