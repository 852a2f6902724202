package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sirherobrine23.com.br/go-bds/go-armexec"
	"sirherobrine23.com.br/go-bds/go-armexec/filesystem"
)

var digestLdflags bool

var digestCmd = &cobra.Command{
	Use:   "digest PATH",
	Short: "Print the sha256 the gate uses to recognize an emulator binary",
	Long: `Print the sha256 of PATH, normally the qemu-arm-static shipped with the
system. Put the value in the config file as "digest", or stamp it into the
preload shim at build time with --ldflags.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := armexec.Resolve(args[0])
		if err != nil {
			return err
		}
		sum, err := armexec.Digest(filesystem.Host, path)
		if err != nil {
			return err
		}
		if digestLdflags {
			fmt.Fprintf(cmd.OutOrStdout(), "-X sirherobrine23.com.br/go-bds/go-armexec.EmulatorPath=%s -X sirherobrine23.com.br/go-bds/go-armexec.EmulatorDigest=%s\n", path, sum.Encoded())
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, path)
		return nil
	},
}

func init() {
	digestCmd.Flags().BoolVar(&digestLdflags, "ldflags", false, "print as -ldflags arguments for building the preload shim")
	rootCmd.AddCommand(digestCmd)
}
