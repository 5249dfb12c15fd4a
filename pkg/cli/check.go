package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"evmxfer/pkg/config"
	"evmxfer/pkg/models"
	"evmxfer/pkg/rpc"

	"github.com/spf13/cobra"
)

var errInvalidConfig = errors.New("configuration is invalid")

func (a *app) checkCmd() *cobra.Command {
	var asJSON, dryRun bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and probe every RPC endpoint",
		Long: "Validate the configuration and probe every RPC endpoint. Networks " +
			"configured without a chain id get the observed one saved unless --dry-run is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := a.loadConfig()
			if err != nil {
				return err
			}
			if !asJSON {
				fmt.Fprintf(a.stdout, "Testing configuration at: %s\n", path)
			}

			report := rpc.CheckConfig(cmd.Context(), &cfg)
			report.ConfigPath = path
			report.DryRun = dryRun
			if report.ConfigUpdated && !dryRun {
				if err := config.SaveConfig(cfg, path); err != nil {
					report.SaveError = err.Error()
				}
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(a.stdout, report)
			}
			if !report.ValidStructure {
				return errInvalidConfig
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report chain id updates without saving them")
	return cmd
}

func printReport(w io.Writer, r models.CheckReport) {
	if !r.ValidStructure {
		for _, e := range r.StructureErrors {
			fmt.Fprintf(w, "Error: %s\n", e)
		}
		return
	}
	fmt.Fprintf(w, "Found %d networks and %d tokens.\n", r.NetworkCount, r.TokenCount)

	for _, n := range r.Networks {
		fmt.Fprintf(w, "Testing Network: %s (%s)\n", n.Name, n.ID)
		for _, c := range n.RPCs {
			switch {
			case c.Status != "ok":
				fmt.Fprintf(w, "  RPC: %s ... Failed: %s\n", c.URL, c.Error)
			case c.Error != "":
				fmt.Fprintf(w, "  RPC: %s ... OK (ChainID: %d, %s) - %s\n", c.URL, c.ChainID, c.Latency, c.Error)
			case n.ChainIDUpdated:
				fmt.Fprintf(w, "  RPC: %s ... OK (ChainID: %d, %s) - UPDATED CONFIG\n", c.URL, c.ChainID, c.Latency)
			default:
				fmt.Fprintf(w, "  RPC: %s ... OK (ChainID: %d, %s) - Verified\n", c.URL, c.ChainID, c.Latency)
			}
		}
	}

	if len(r.InconsistentNetworks) > 0 {
		fmt.Fprintln(w, "\nWARNING: Inconsistent RPCs detected!")
		fmt.Fprintln(w, "The following networks have RPCs returning conflicting chain IDs:")
		for _, id := range r.InconsistentNetworks {
			fmt.Fprintf(w, " - %s\n", id)
		}
	}

	if r.ConfigUpdated {
		fmt.Fprintln(w, "\nUpdating configuration with fetched chain IDs...")
		switch {
		case r.DryRun:
			fmt.Fprintln(w, "Dry run enabled: Configuration NOT saved.")
		case r.SaveError != "":
			fmt.Fprintf(w, "Failed to save config: %s\n", r.SaveError)
		default:
			fmt.Fprintln(w, "Configuration saved successfully.")
		}
	}
}
