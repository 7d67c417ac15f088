package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/tendermint/lightnode/config"
	tmbytes "github.com/tendermint/lightnode/libs/bytes"
	"github.com/tendermint/lightnode/libs/cli"
)

// InitFilesCmd initializes a fresh light node home directory.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a light node home directory",
	Long: `Initialize a light node home directory.

The validators hash of the light block at --height must be obtained from a
source you trust. It is the only thing a fresh light node trusts.`,
	Example: `lightnode init --rpc-address tcp://10.0.0.1:26657 --height 1 \
	--validators-hash 3FE2453BB45CADB9E80BBD655870EA33677756EC43D0A656448C829185AB0FBF`,
	RunE: initFiles,
}

func init() {
	InitFilesCmd.Flags().Uint64("height", 0, "height of the first trusted light block")
	InitFilesCmd.Flags().String("validators-hash", "", "hash of the validator set at --height")
}

func initFiles(cmd *cobra.Command, args []string) error {
	home := viper.GetString(cli.HomeFlag)
	config.SetRoot(home)

	if h := viper.GetUint64("height"); h > 0 {
		hash, err := tmbytes.ParseHexBytes(viper.GetString("validators-hash"))
		if err != nil {
			return fmt.Errorf("can't parse validators-hash: %w", err)
		}
		config.SubjectiveInit = cfg.SubjectiveInitConfig{Height: h, ValidatorsHash: hash}
	}
	if err := config.ValidateBasic(); err != nil {
		return err
	}

	configFile := config.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		logger.Info("Found config file", "path", configFile)
	} else {
		if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
			return err
		}
		if err := cfg.WriteConfigFile(configFile, config); err != nil {
			return err
		}
		logger.Info("Generated config file", "path", configFile)
	}

	return cfg.EnsureRoot(home)
}
