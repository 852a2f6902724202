package main

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"sirherobrine23.com.br/go-bds/go-armexec"
)

var execCmd = &cobra.Command{
	Use:   "exec [--] PROGRAM [ARGS...]",
	Short: "Replace armexec with PROGRAM, through the emulator when it is an ARM executable",
	Long: `Replace the armexec process with PROGRAM, exactly like execve(2), after the
gate decided how to run it. PROGRAM is looked up in PATH when it has no slash.
ARGS are passed unchanged; the environment is armexec's own.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := exec.LookPath(args[0])
		if err != nil {
			cmd.PrintErrf("armexec: %v\n", err)
			return exitCode(127)
		}
		err = gate().Exec(armexec.Invocation{
			Path: path,
			Argv: args,
			Envv: os.Environ(),
		})
		// only reached when execve failed
		cmd.PrintErrf("armexec: exec %s: %v\n", args[0], err)
		return exitCode(126)
	},
}

func init() {
	execCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(execCmd)
}
