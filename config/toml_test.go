package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tmbytes "github.com/tendermint/lightnode/libs/bytes"
)

func ensureFiles(t *testing.T, rootDir string, files ...string) {
	for _, f := range files {
		p := rootify(f, rootDir)
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestEnsureRoot(t *testing.T) {
	require := require.New(t)

	tmpDir := t.TempDir()

	// create root dir
	require.NoError(EnsureRoot(tmpDir))

	// make sure config is set properly
	data, err := os.ReadFile(filepath.Join(tmpDir, defaultConfigFilePath))
	require.NoError(err)
	checkConfig(t, string(data))

	ensureFiles(t, tmpDir, "data")

	// an existing config file is left alone
	cfg := DefaultConfig()
	cfg.RPCAddress = "tcp://10.0.0.1:26657"
	require.NoError(WriteConfigFile(filepath.Join(tmpDir, defaultConfigFilePath), cfg))
	require.NoError(EnsureRoot(tmpDir))

	loaded, err := Load(filepath.Join(tmpDir, defaultConfigFilePath))
	require.NoError(err)
	assert.Equal(t, "tcp://10.0.0.1:26657", loaded.RPCAddress)
}

func TestWriteConfigFileRoundTrip(t *testing.T) {
	hash, err := tmbytes.ParseHexBytes(testValidatorsHash)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.TrustingPeriod = Duration(504 * time.Hour)
	cfg.TrustLevel = "2/3"
	cfg.DBBackend = DBBackendGoLevelDB
	cfg.CacheSize = 42
	cfg.CORSAllowedOrigins = []string{"https://example.com", "*"}
	cfg.SubjectiveInit = SubjectiveInitConfig{Height: 12, ValidatorsHash: hash}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, WriteConfigFile(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.NoError(t, loaded.ValidateBasic())
}

func checkConfig(t *testing.T, configFile string) {
	t.Helper()
	// list of words we expect in the config
	var elems = []string{
		"rpc-address",
		"trusting-period",
		"trust-level",
		"max-clock-drift",
		"db-backend",
		"db-dir",
		"cache-size",
		"sync-interval",
		"laddr",
		"[subjective-init]",
		"validators-hash",
	}
	for _, e := range elems {
		assert.Contains(t, configFile, e)
	}
}
