package main

import (
	"os"
	"path/filepath"

	cmd "github.com/tendermint/lightnode/cmd/lightnode/commands"
	"github.com/tendermint/lightnode/config"
	"github.com/tendermint/lightnode/libs/cli"
)

func main() {
	rootCmd := cmd.RootCmd
	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.VerifyCmd,
		cmd.StartCmd,
		cmd.VersionCmd,
	)

	cmd := cli.PrepareBaseCmd(rootCmd, "LIGHTNODE", os.ExpandEnv(filepath.Join("$HOME", config.DefaultLightnodeDir)))
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
