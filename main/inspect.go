package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/h2non/filetype"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"sirherobrine23.com.br/go-bds/go-armexec"
	"sirherobrine23.com.br/go-bds/go-armexec/filesystem"
)

// sniffSize is how much filetype needs to recognize every type it knows.
const sniffSize = 262

// report describes one inspected file.
type report struct {
	Path     string     `json:"path"`
	Resolved string     `json:"resolved,omitempty"`
	Class    string     `json:"class"`
	Action   string     `json:"action"`
	Kind     string     `json:"kind,omitempty"`
	Size     int64      `json:"size"`
	ELF      *elfFields `json:"elf,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

type elfFields struct {
	Class   string `json:"class"`
	Data    string `json:"data"`
	Type    string `json:"type"`
	Machine string `json:"machine"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect PATH...",
	Short: "Show how the gate classifies files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := gate()
		reports := make([]report, len(args))

		var eg errgroup.Group
		eg.SetLimit(runtime.GOMAXPROCS(0))
		for i, path := range args {
			eg.Go(func() error {
				reports[i] = inspect(g, path)
				return nil
			})
		}
		_ = eg.Wait()

		if jsonOut {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reports)
		}
		return printReports(cmd.OutOrStdout(), reports)
	},
}

func inspect(g *armexec.Gate, path string) report {
	d := g.Decide(armexec.Invocation{Path: path, Argv: []string{path}})
	r := report{
		Path:     path,
		Resolved: d.Resolved,
		Class:    d.Class.String(),
		Action:   d.Action.String(),
	}
	if d.Reason != nil {
		r.Reason = d.Reason.Error()
	}
	if d.Resolved == "" {
		return r
	}

	if hdr, err := armexec.ReadHeader(filesystem.Host, d.Resolved); err == nil && hdr.Magic() {
		fh := hdr.FileHeader()
		r.ELF = &elfFields{
			Class:   fh.Class.String(),
			Data:    fh.Data.String(),
			Type:    fh.Type.String(),
			Machine: fh.Machine.String(),
		}
	}
	r.Kind, r.Size = sniff(d.Resolved)
	return r
}

// sniff names the file type for humans. It plays no part in classification.
func sniff(path string) (string, int64) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0
	} else if info.IsDir() {
		return "directory", info.Size()
	}

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", info.Size()
	}
	buf = buf[:n]

	if kind, _ := filetype.Match(buf); kind != filetype.Unknown {
		return kind.MIME.Value, info.Size()
	}
	if len(buf) >= 2 && string(buf[:2]) == "#!" {
		return "script", info.Size()
	}
	return "unknown", info.Size()
}

func printReports(w io.Writer, reports []report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tCLASS\tACTION\tMACHINE\tKIND\tSIZE")
	for _, r := range reports {
		machine := "-"
		if r.ELF != nil {
			machine = r.ELF.Machine + "/" + r.ELF.Class
		}
		kind, size := r.Kind, "-"
		if kind == "" {
			kind = "-"
		}
		if r.Resolved != "" {
			size = humanize.Bytes(uint64(r.Size))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Path, r.Class, r.Action, machine, kind, size)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
