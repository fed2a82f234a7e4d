package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/uascope/uascope/pkg/diag"
)

// diagnoseCmd runs the staged connectivity pipeline against a target.
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <host[:port] | opc.tcp://host[:port]>",
	Short: "Diagnose connectivity to an OPC UA server",
	Long: `Diagnose runs a staged check against a target: input validation,
DNS resolution, a TCP scan of the common OPC UA ports, and endpoint
discovery on every open port. Each stage streams its progress; the
first failing stage stops the run, except discovery failures, which
are reported as a warning.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		out := cmd.OutOrStdout()
		pipeline := diag.NewPipeline(logger)

		streaming := cfg.OutputFormat == "table" || cfg.OutputFormat == ""
		emit := func(s diag.Step) {
			if !streaming {
				return
			}
			fmt.Fprintf(out, "%s %-22s %s\n", statusGlyph(s.Status), s.Name, s.Details)
		}

		result := pipeline.Run(ctx, args[0], emit)

		if !streaming {
			fmt.Fprint(out, formatter.Format(result))
			if !result.OverallSuccess {
				return fmt.Errorf("diagnosis failed")
			}
			return nil
		}

		fmt.Fprintln(out)
		if result.OverallSuccess {
			fmt.Fprintf(out, "reachable in %s (run %s)\n", result.TotalDuration.Round(time.Millisecond), result.RunID)
			if result.RecommendedURL != "" {
				fmt.Fprintf(out, "recommended endpoint: %s\n", result.RecommendedURL)
			}
			if s := openPortSummary(result.OpenPorts); s != "" {
				fmt.Fprintf(out, "open ports: %s\n", s)
			}
			return nil
		}
		fmt.Fprintf(out, "diagnosis failed after %s (run %s)\n", result.TotalDuration.Round(time.Millisecond), result.RunID)
		return fmt.Errorf("target is not reachable")
	},
}

// openPortSummary renders the ports that were actually open, comma
// separated. Closed ports stay out of the summary line.
func openPortSummary(scans []diag.PortScan) string {
	var ports []string
	for _, p := range scans {
		if p.Open {
			ports = append(ports, strconv.Itoa(p.Port))
		}
	}
	return strings.Join(ports, ", ")
}

// statusGlyph maps a step status to its progress marker.
func statusGlyph(s diag.Status) string {
	switch s {
	case diag.StatusSuccess:
		return "✓"
	case diag.StatusWarning:
		return "!"
	case diag.StatusFailed:
		return "✗"
	case diag.StatusRunning:
		return "…"
	default:
		return "·"
	}
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}
