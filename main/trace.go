package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"sirherobrine23.com.br/go-bds/go-armexec"
	"sirherobrine23.com.br/go-bds/go-armexec/internal/log"
)

type traceLine struct {
	PID      int      `json:"pid"`
	VPID     int      `json:"vpid"`
	Path     string   `json:"path"`
	Action   string   `json:"action"`
	Class    string   `json:"class"`
	Filename string   `json:"filename"`
	Argv     []string `json:"argv"`
}

var traceCmd = &cobra.Command{
	Use:   "trace [--] PROGRAM [ARGS...]",
	Short: "Run PROGRAM under ptrace and report what the gate would do with every execve",
	Long: `Run PROGRAM and all of its descendants under ptrace. Every execve they make
is reported with the decision the gate would take; calls are not modified.
Exits with PROGRAM's exit status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
		defer stop()

		tracer := &armexec.Tracer{
			Gate:    gate(),
			Command: args,
			OnExec:  traceReporter(cmd.ErrOrStderr(), jsonOut),
		}

		code, err := tracer.Run(ctx)
		if err != nil {
			return err
		}
		if code != 0 {
			return exitCode(code)
		}
		return nil
	},
}

// traceReporter prints one line per observed execve, or one JSON object
// when asJSON is set.
func traceReporter(out io.Writer, asJSON bool) func(armexec.TraceEvent) {
	enc := json.NewEncoder(out)
	return func(ev armexec.TraceEvent) {
		if asJSON {
			err := enc.Encode(traceLine{
				PID:      ev.Tracee.PID,
				VPID:     ev.Tracee.VPID,
				Path:     ev.Invocation.Path,
				Action:   ev.Decision.Action.String(),
				Class:    ev.Decision.Class.String(),
				Filename: ev.Decision.Path,
				Argv:     ev.Decision.Argv,
			})
			if err != nil {
				log.Debug("cannot write trace event", "pid", ev.Tracee.PID, "error", err)
			}
			return
		}
		fmt.Fprintf(out, "[%d] %-11s %s\n", ev.Tracee.VPID, ev.Decision.Action,
			log.Safe(strings.Join(ev.Decision.Argv, " ")))
	}
}

func init() {
	traceCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(traceCmd)
}
