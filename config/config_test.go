package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tmmath "github.com/tendermint/lightnode/libs/math"
)

const testValidatorsHash = "3FE2453BB45CADB9E80BBD655870EA33677756EC43D0A656448C829185AB0FBF"

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	// set up some defaults
	cfg := DefaultConfig()
	assert.NotNil(cfg.RPCAddress)
	assert.Equal(6000*time.Second, cfg.TrustingPeriod.Std())
	assert.Equal("1/3", cfg.TrustLevel)
	assert.False(cfg.HasSubjectiveInit())

	// check the root dir stuff...
	cfg.SetRoot("/foo")
	cfg.DBPath = "/opt/data"
	assert.Equal("/opt/data", cfg.DBDir())
	cfg.DBPath = "data"
	assert.Equal("/foo/data", cfg.DBDir())
	assert.Equal("/foo/config/config.toml", cfg.ConfigFile())

	assert.NoError(cfg.ValidateBasic())
	assert.NoError(TestConfig().ValidateBasic())
}

func TestConfigValidateBasic(t *testing.T) {
	hash := make([]byte, ValidatorsHashSize)

	testCases := map[string]struct {
		modify  func(cfg *Config)
		wantErr bool
	}{
		"default":               {func(*Config) {}, false},
		"empty rpc address":     {func(c *Config) { c.RPCAddress = "" }, true},
		"zero trusting period":  {func(c *Config) { c.TrustingPeriod = 0 }, true},
		"negative clock drift":  {func(c *Config) { c.MaxClockDrift = Duration(-time.Second) }, true},
		"zero clock drift":      {func(c *Config) { c.MaxClockDrift = 0 }, false},
		"garbled trust level":   {func(c *Config) { c.TrustLevel = "one third" }, true},
		"trust level too low":   {func(c *Config) { c.TrustLevel = "1/4" }, true},
		"trust level too high":  {func(c *Config) { c.TrustLevel = "4/3" }, true},
		"full trust level":      {func(c *Config) { c.TrustLevel = "1/1" }, false},
		"unknown log level":     {func(c *Config) { c.LogLevel = "loud" }, true},
		"json log format":       {func(c *Config) { c.LogFormat = LogFormatJSON }, false},
		"unknown log format":    {func(c *Config) { c.LogFormat = "xml" }, true},
		"goleveldb":             {func(c *Config) { c.DBBackend = DBBackendGoLevelDB }, false},
		"goleveldb without dir": {func(c *Config) { c.DBBackend = DBBackendGoLevelDB; c.DBPath = "" }, true},
		"unknown db backend":    {func(c *Config) { c.DBBackend = "boltdb" }, true},
		"zero cache size":       {func(c *Config) { c.CacheSize = 0 }, true},
		"zero sync interval":    {func(c *Config) { c.SyncInterval = 0 }, true},
		"empty laddr":           {func(c *Config) { c.ListenAddress = "" }, true},
		"subjective init": {func(c *Config) {
			c.SubjectiveInit = SubjectiveInitConfig{Height: 1, ValidatorsHash: hash}
		}, false},
		"subjective init without hash": {func(c *Config) {
			c.SubjectiveInit = SubjectiveInitConfig{Height: 1}
		}, true},
		"subjective init with short hash": {func(c *Config) {
			c.SubjectiveInit = SubjectiveInitConfig{Height: 1, ValidatorsHash: hash[:20]}
		}, true},
		"hash without height": {func(c *Config) {
			c.SubjectiveInit = SubjectiveInitConfig{ValidatorsHash: hash}
		}, true},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			err := cfg.ValidateBasic()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigVerificationOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrustLevel = "2/3"
	cfg.MaxClockDrift = Duration(5 * time.Second)

	opts, err := cfg.VerificationOptions()
	require.NoError(t, err)
	assert.Equal(t, tmmath.Fraction{Numerator: 2, Denominator: 3}, opts.TrustThreshold)
	assert.Equal(t, 6000*time.Second, opts.TrustingPeriod)
	assert.Equal(t, 5*time.Second, opts.MaxClockDrift)
	assert.True(t, opts.Now.IsZero())
	assert.NoError(t, opts.ValidateBasic())

	cfg.TrustLevel = "2-3"
	_, err = cfg.VerificationOptions()
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	write := func(t *testing.T, name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		return path
	}

	t.Run("partial file keeps defaults", func(t *testing.T) {
		cfg, err := Load(write(t, "partial.toml", `
rpc-address = "tcp://10.0.0.1:26657"
trusting-period = "2h"

[subjective-init]
height = 7
validators-hash = "`+testValidatorsHash+`"
`))
		require.NoError(t, err)
		assert.Equal(t, "tcp://10.0.0.1:26657", cfg.RPCAddress)
		assert.Equal(t, 2*time.Hour, cfg.TrustingPeriod.Std())
		assert.Equal(t, DefaultConfig().SyncInterval, cfg.SyncInterval)
		assert.EqualValues(t, 7, cfg.SubjectiveInit.Height)
		assert.Equal(t, testValidatorsHash, cfg.SubjectiveInit.ValidatorsHash.String())
		assert.NoError(t, cfg.ValidateBasic())
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Load(write(t, "unknown.toml", `
rpc-address = "localhost:26657"
witnesses = ["localhost:26658"]
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "witnesses")
	})

	t.Run("unknown key in section", func(t *testing.T) {
		_, err := Load(write(t, "unknown-section.toml", `
[subjective-init]
height = 1
hash = "`+testValidatorsHash+`"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subjective-init.hash")
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(write(t, "duration.toml", `sync-interval = "often"`))
		assert.Error(t, err)
	})

	t.Run("bad hash", func(t *testing.T) {
		_, err := Load(write(t, "hash.toml", `
[subjective-init]
validators-hash = "not hex"
`))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.toml"))
		assert.Error(t, err)
	})
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrDefault(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().SetRoot(dir), cfg)

	require.NoError(t, EnsureRoot(dir))
	cfg, err = LoadOrDefault(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.RootDir)
	assert.Equal(t, DefaultConfig().RPCAddress, cfg.RPCAddress)
}
