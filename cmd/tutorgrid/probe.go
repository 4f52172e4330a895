package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tutorgrid/internal/adapter/httpapi"
	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/config"
	"tutorgrid/internal/usecase/multiagent"
)

var probeRegistry string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check the health of every registered agent",
	Long: `Probe every agent in the registry file (or the supervisor config) once and
print its health. Exits non-zero when any agent is offline.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVarP(&probeRegistry, "registry", "r", "", "registry file (defaults to supervisor.registry_file)")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	scfg := cfg.Supervisor
	if probeRegistry != "" {
		scfg.RegistryFile = probeRegistry
		scfg.Agents = nil
	}
	descs, err := loadAgents(scfg)
	if err != nil {
		return err
	}
	return probeAgents(cmd.Context(), cmd.OutOrStdout(), descs, scfg.ProbeTimeout, httpapi.NewHTTPTransport(scfg.Pool, nil))
}

func probeAgents(ctx context.Context, out io.Writer, descs []domain.AgentDescriptor, timeout time.Duration, tr multiagent.WorkerTransport) error {
	registry := multiagent.NewRegistry(nil)
	if err := registry.RegisterAll(descs); err != nil {
		return err
	}
	prober := multiagent.NewProber(registry, tr, multiagent.ProberConfig{Timeout: timeout}, nil)
	if err := prober.ProbeAll(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDRESS\tSTATUS")
	offline := 0
	for _, d := range registry.List() {
		if d.Health == domain.HealthOffline {
			offline++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Address, d.Health)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if offline > 0 {
		return fmt.Errorf("%d of %d agents offline", offline, registry.Len())
	}
	return nil
}
