package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  host: "127.0.0.1"
  port: 9090
database:
  dsn: ""
endpoint:
  isSource: true
  localAsset: "USDT"
  counterpartAssetRef: "wUSDT"
  localChainId: 56
  counterpartChainId: 714
  endpointAccount: "0x000000000000000000000000000000000000b41d"
access:
  mode: "roles"
  deployer: "0x90f79bf6eb2c4f870365e785982e1f101e93b906"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	err := LoadConfig(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, AppConfig.Server.Port)
	assert.True(t, AppConfig.Endpoint.IsSource)
	assert.Equal(t, "USDT", AppConfig.Endpoint.LocalAsset)
	assert.Equal(t, "roles", AppConfig.Access.Mode)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8181")
	t.Setenv("BRIDGE_IS_SOURCE", "false")
	t.Setenv("ACCESS_DEPLOYER", "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")

	require.NoError(t, LoadConfig(writeConfig(t, testYAML)))

	assert.Equal(t, 8181, AppConfig.Server.Port)
	assert.False(t, AppConfig.Endpoint.IsSource)
	assert.Equal(t, "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc", AppConfig.Access.Deployer)
}

func TestLoadConfigValidation(t *testing.T) {
	sameChains := `
endpoint:
  isSource: true
  localAsset: "USDT"
  localChainId: 56
  counterpartChainId: 56
access:
  mode: "roles"
  deployer: "0x90f79bf6eb2c4f870365e785982e1f101e93b906"
`
	assert.Error(t, LoadConfig(writeConfig(t, sameChains)))

	missingAsset := `
endpoint:
  isSource: true
  localChainId: 56
  counterpartChainId: 714
access:
  mode: "roles"
  deployer: "0x90f79bf6eb2c4f870365e785982e1f101e93b906"
`
	assert.Error(t, LoadConfig(writeConfig(t, missingAsset)))

	signatureMissingValidator := `
endpoint:
  isSource: true
  localAsset: "USDT"
  localChainId: 56
  counterpartChainId: 714
access:
  mode: "signature"
`
	assert.Error(t, LoadConfig(writeConfig(t, signatureMissingValidator)))

	unknownMode := `
endpoint:
  isSource: true
  localAsset: "USDT"
  localChainId: 56
  counterpartChainId: 714
access:
  mode: "oracle"
`
	assert.Error(t, LoadConfig(writeConfig(t, unknownMode)))
}
