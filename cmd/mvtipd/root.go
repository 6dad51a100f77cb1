package main

import (
	"github.com/spf13/cobra"

	"github.com/megavibe/megavibe-node/tipClient/constant"
)

const flagHome = "home"

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mvtipd",
		Short:         "MegaVibe cross-chain tip daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagHome, constant.DefaultNodeHome, "Node home directory")

	InitRootCmd(rootCmd) // add subcommands like `start` and `tip`

	return rootCmd
}
