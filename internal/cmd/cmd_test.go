package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/lthummus/loginguard/internal/config"
)

func TestHostFromConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	assert.Equal(t, "http://localhost:9000", hostFromConfig())

	viper.Set(config.KeyServerPort, 8443)
	viper.Set(config.KeyServerTLSEnabled, true)
	assert.Equal(t, "https://localhost:8443", hostFromConfig())
}

func TestGenerateSecretKey(t *testing.T) {
	a, err := generateSecretKey()
	require.NoError(t, err)
	b, err := generateSecretKey()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}

func TestInitConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loginguard.yaml")
	t.Cleanup(func() {
		initConfigPath = "loginguard.yaml"
		initConfigDBFile = "loginguard.db"
		initConfigForce = false
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"init-config", "-o", path, "--db-file", "/data/lg.db"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var written map[string]any
	require.NoError(t, yaml.Unmarshal(data, &written))
	db := written["db"].(map[any]any)
	assert.Equal(t, "/data/lg.db", db["file"])

	rootCmd.SetArgs([]string{"init-config", "-o", path})
	assert.ErrorContains(t, rootCmd.Execute(), "already exists")
}

func TestHealthCheckCmd_NeedsATarget(t *testing.T) {
	rootCmd.SetArgs([]string{"healthcheck"})
	assert.ErrorContains(t, rootCmd.Execute(), "one of useconfig host must be specified")
}
