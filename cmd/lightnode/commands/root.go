package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/tendermint/lightnode/config"
	"github.com/tendermint/lightnode/libs/cli"
	"github.com/tendermint/lightnode/libs/log"
)

var (
	config = cfg.DefaultConfig()
	logger = log.NewNopLogger()
)

func init() {
	registerFlagsRootCmd(RootCmd)
}

func registerFlagsRootCmd(cmd *cobra.Command) {
	def := cfg.DefaultConfig()
	cmd.PersistentFlags().String("rpc-address", def.RPCAddress, "address of the node light blocks are fetched from")
	cmd.PersistentFlags().Duration("trusting-period", def.TrustingPeriod.Std(),
		"trusting period that light blocks can be verified within. Should be significantly less than the unbonding period")
	cmd.PersistentFlags().String("trust-level", def.TrustLevel, "trust level. Must be between 1/3 and 1/1")
	cmd.PersistentFlags().Duration("max-clock-drift", def.MaxClockDrift.Std(), "how far in the future a header time may be")
	cmd.PersistentFlags().String("log-level", def.LogLevel, "log level")
	cmd.PersistentFlags().String("log-format", def.LogFormat, "log format: plain or json")
	cmd.PersistentFlags().String("db-backend", def.DBBackend, "trusted store backend: memdb or goleveldb")
	cmd.PersistentFlags().String("db-dir", def.DBPath, "database directory")
	cmd.PersistentFlags().Int("cache-size", def.CacheSize, "capacity of the valid and fetched caches")
}

// ParseConfig reads the config file under the home directory, if there is
// one, and overlays the flags and environment variables set by the user.
func ParseConfig() (*cfg.Config, error) {
	conf, err := cfg.LoadOrDefault(viper.GetString(cli.HomeFlag))
	if err != nil {
		return nil, err
	}
	overlay(conf, viper.GetViper())
	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// overlay copies the keys set in v over conf.
func overlay(conf *cfg.Config, v *viper.Viper) {
	strs := map[string]*string{
		"rpc-address": &conf.RPCAddress,
		"trust-level": &conf.TrustLevel,
		"log-level":   &conf.LogLevel,
		"log-format":  &conf.LogFormat,
		"db-backend":  &conf.DBBackend,
		"db-dir":      &conf.DBPath,
		"laddr":       &conf.ListenAddress,
	}
	for key, p := range strs {
		if v.IsSet(key) {
			*p = v.GetString(key)
		}
	}

	durations := map[string]*cfg.Duration{
		"trusting-period": &conf.TrustingPeriod,
		"max-clock-drift": &conf.MaxClockDrift,
		"sync-interval":   &conf.SyncInterval,
	}
	for key, p := range durations {
		if v.IsSet(key) {
			*p = cfg.Duration(v.GetDuration(key))
		}
	}

	if v.IsSet("cache-size") {
		conf.CacheSize = v.GetInt("cache-size")
	}
}

// RootCmd is the root command for the light node.
var RootCmd = &cobra.Command{
	Use:   "lightnode",
	Short: "Light node verifying a chain by bisection",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if cmd.Name() == VersionCmd.Name() {
			return nil
		}

		config, err = ParseConfig()
		if err != nil {
			return err
		}

		logger, err = log.NewDefaultLogger(config.LogFormat, config.LogLevel)
		if err != nil {
			return err
		}

		logger = logger.With("module", "main")
		return nil
	},
}
