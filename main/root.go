// Command armexec runs, inspects and traces programs through the ARM
// emulation gate.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sirherobrine23.com.br/go-bds/go-armexec"
	"sirherobrine23.com.br/go-bds/go-armexec/internal/config"
	"sirherobrine23.com.br/go-bds/go-armexec/internal/log"
)

var (
	configPath string
	verbose    bool
	jsonOut    bool

	cfg *config.Config
)

// exitCode carries a child's exit status out of a command.
type exitCode int

func (code exitCode) Error() string { return fmt.Sprintf("exit status %d", int(code)) }

var rootCmd = &cobra.Command{
	Use:   "armexec",
	Short: "Run 32-bit ARM programs through qemu user-mode transparently",
	Long: `armexec decides, for every program it is asked to execute, whether the
program is a 32-bit ARM executable. ARM programs are started through the
configured qemu user-mode emulator, everything else runs unchanged.

The same decision is made by the execve preload shim built from ./preload.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		log.Init(log.Options{
			Verbose:    verbose || cfg.Debug,
			JSONFormat: jsonOut,
			Stderr:     cmd.ErrOrStderr(),
		})
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if _, ok := err.(exitCode); err != nil && !ok {
		rootCmd.PrintErrln("armexec:", err)
	}
	return err
}

func gate() *armexec.Gate { return cfg.Gate() }

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (env: ARMEXEC_CONFIG, default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "trace every decision on stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}
