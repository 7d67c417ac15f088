package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	tmbytes "github.com/tendermint/lightnode/libs/bytes"
	tmmath "github.com/tendermint/lightnode/libs/math"
	"github.com/tendermint/lightnode/light"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"

	// DBBackendMemDB keeps the trusted store in memory only.
	DBBackendMemDB = "memdb"
	// DBBackendGoLevelDB persists the trusted store with goleveldb.
	DBBackendGoLevelDB = "goleveldb"

	// ValidatorsHashSize is the size of a validator set hash.
	ValidatorsHashSize = 32
)

var (
	DefaultLightnodeDir = ".lightnode"
	defaultConfigDir    = "config"
	defaultDataDir      = "data"

	defaultConfigFileName = "config.toml"
	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the configuration of a light node.
type Config struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `toml:"-"`

	// Address of the node light blocks are fetched from.
	RPCAddress string `toml:"rpc-address"`

	// How long a trusted light block can be used as an anchor.
	TrustingPeriod Duration `toml:"trusting-period"`

	// Fraction of the trusted validators that must have signed a
	// non-adjacent header, e.g. "1/3".
	TrustLevel string `toml:"trust-level"`

	// How far in the future a header time may be.
	MaxClockDrift Duration `toml:"max-clock-drift"`

	// Output level for logging
	LogLevel string `toml:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `toml:"log-format"`

	// Database backend of the trusted store: memdb | goleveldb
	DBBackend string `toml:"db-backend"`

	// Database directory
	DBPath string `toml:"db-dir"`

	// Capacity of the valid and fetched caches.
	CacheSize int `toml:"cache-size"`

	// How often the node verifies the latest light block of the remote.
	SyncInterval Duration `toml:"sync-interval"`

	// Address the trusted store is served on.
	ListenAddress string `toml:"laddr"`

	// Origins allowed to query the served store. Empty disables CORS.
	CORSAllowedOrigins []string `toml:"cors-allowed-origins"`

	SubjectiveInit SubjectiveInitConfig `toml:"subjective-init"`
}

// SubjectiveInitConfig names the light block a fresh node trusts. The
// validators hash must be obtained out of band.
type SubjectiveInitConfig struct {
	Height         uint64           `toml:"height"`
	ValidatorsHash tmbytes.HexBytes `toml:"validators-hash"`
}

// DefaultConfig returns a default configuration for a light node.
func DefaultConfig() *Config {
	return &Config{
		RPCAddress:         "localhost:26657",
		TrustingPeriod:     Duration(6000 * time.Second),
		TrustLevel:         light.DefaultTrustLevel.String(),
		MaxClockDrift:      Duration(light.DefaultMaxClockDrift),
		LogLevel:           "info",
		LogFormat:          LogFormatPlain,
		DBBackend:          DBBackendMemDB,
		DBPath:             defaultDataDir,
		CacheSize:          1000,
		SyncInterval:       Duration(10 * time.Second),
		ListenAddress:      "tcp://127.0.0.1:8888",
		CORSAllowedOrigins: []string{},
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.TrustingPeriod = Duration(3 * time.Hour)
	cfg.SyncInterval = Duration(100 * time.Millisecond)
	cfg.ListenAddress = "tcp://127.0.0.1:0"
	cfg.CacheSize = 100
	return cfg
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.RootDir = root
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg *Config) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ConfigFile returns the full path to the config.toml file.
func (cfg *Config) ConfigFile() string {
	return rootify(defaultConfigFilePath, cfg.RootDir)
}

// HasSubjectiveInit reports whether a trusted light block is configured.
func (cfg *Config) HasSubjectiveInit() bool {
	return cfg.SubjectiveInit.Height > 0
}

// ParseTrustLevel parses the trust level.
func (cfg *Config) ParseTrustLevel() (tmmath.Fraction, error) {
	return tmmath.ParseFraction(cfg.TrustLevel)
}

// VerificationOptions returns the options every verification of the node
// runs with.
func (cfg *Config) VerificationOptions() (light.VerificationOptions, error) {
	trustLevel, err := cfg.ParseTrustLevel()
	if err != nil {
		return light.VerificationOptions{}, errors.Wrap(err, "can't parse trust-level")
	}
	return light.VerificationOptions{
		TrustThreshold: trustLevel,
		TrustingPeriod: cfg.TrustingPeriod.Std(),
		MaxClockDrift:  cfg.MaxClockDrift.Std(),
	}, nil
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if cfg.RPCAddress == "" {
		return errors.New("rpc-address can't be empty")
	}
	if cfg.TrustingPeriod <= 0 {
		return errors.New("trusting-period must be positive")
	}
	if cfg.MaxClockDrift < 0 {
		return errors.New("max-clock-drift can't be negative")
	}
	trustLevel, err := cfg.ParseTrustLevel()
	if err != nil {
		return errors.Wrap(err, "can't parse trust-level")
	}
	if err := light.ValidateTrustLevel(trustLevel); err != nil {
		return errors.Wrap(err, "invalid trust-level")
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log-level")
	}
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log-format (must be 'plain' or 'json')")
	}
	switch cfg.DBBackend {
	case DBBackendMemDB, DBBackendGoLevelDB:
	default:
		return errors.Errorf("unknown db-backend %q (must be %q or %q)",
			cfg.DBBackend, DBBackendMemDB, DBBackendGoLevelDB)
	}
	if cfg.DBBackend == DBBackendGoLevelDB && cfg.DBPath == "" {
		return errors.New("db-dir can't be empty with a goleveldb backend")
	}
	if cfg.CacheSize <= 0 {
		return errors.New("cache-size must be positive")
	}
	if cfg.SyncInterval <= 0 {
		return errors.New("sync-interval must be positive")
	}
	if cfg.ListenAddress == "" {
		return errors.New("laddr can't be empty")
	}
	return errors.Wrap(cfg.SubjectiveInit.ValidateBasic(), "error in [subjective-init] section")
}

// ValidateBasic performs basic validation.
func (cfg SubjectiveInitConfig) ValidateBasic() error {
	if cfg.Height == 0 {
		if len(cfg.ValidatorsHash) > 0 {
			return errors.New("validators-hash is set but height is zero")
		}
		return nil
	}
	if len(cfg.ValidatorsHash) != ValidatorsHashSize {
		return fmt.Errorf("expected validators-hash size to be %d bytes, got %d bytes",
			ValidatorsHashSize, len(cfg.ValidatorsHash))
	}
	return nil
}

// Load decodes the TOML file at path over the default configuration. Keys
// the configuration does not know are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// LoadOrDefault loads the config file under rootDir, or returns the default
// configuration when there is none.
func LoadOrDefault(rootDir string) (*Config, error) {
	path := rootify(defaultConfigFilePath, rootDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig().SetRoot(rootDir), nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.SetRoot(rootDir), nil
}

//-----------------------------------------------------------------------------
// Duration

// Duration is a time.Duration written as a string ("10s") in TOML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
