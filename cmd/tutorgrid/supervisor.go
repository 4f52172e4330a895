package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tutorgrid/internal/adapter/httpapi"
	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/config"
	"tutorgrid/internal/infra/middleware"
	"tutorgrid/internal/usecase/multiagent"
)

var supervisorCmd = &cobra.Command{
	Use:   "supervisor",
	Short: "Run the supervisor API",
	Long: `Run the supervisor: load the agent registry, probe worker health on a schedule,
and serve the routing API.`,
	Args: cobra.NoArgs,
	RunE: runSupervisor,
}

func init() {
	rootCmd.AddCommand(supervisorCmd)
}

func runSupervisor(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, "tutorgrid-supervisor")
	if err != nil {
		return err
	}
	defer a.close()

	scfg := a.cfg.Supervisor
	log := a.logger.With("component", "supervisor")

	descs, err := loadAgents(scfg)
	if err != nil {
		return err
	}
	registry := multiagent.NewRegistry(log)
	if err := registry.RegisterAll(descs); err != nil {
		return fmt.Errorf("register agents: %w", err)
	}
	if registry.Len() == 0 {
		log.Warn("no agents registered; every request will fail routing")
	}

	transport := httpapi.NewHTTPTransport(scfg.Pool, log)
	prober := multiagent.NewProber(registry, transport, multiagent.ProberConfig{
		Interval: scfg.HealthInterval,
		Timeout:  scfg.ProbeTimeout,
	}, log)
	if err := prober.Start(ctx); err != nil {
		return fmt.Errorf("start health prober: %w", err)
	}
	defer prober.Stop()

	sup := multiagent.NewSupervisor(
		multiagent.NewRouter(registry, log),
		multiagent.NewWorkerClient(transport, scfg.ID, scfg.WorkerTimeout, log),
		multiagent.WithHistory(multiagent.NewHistory(scfg.HistorySize)),
		multiagent.WithSupervisorLogger(log),
	)

	deps := httpapi.SupervisorDeps{
		Supervisor:   sup,
		Registry:     registry,
		Prober:       prober,
		Logger:       log,
		RateLimitCtx: ctx,
	}
	if scfg.RateLimit.Enabled {
		deps.RateLimit = &middleware.RateLimitConfig{
			RequestsPerSecond: scfg.RateLimit.RequestsPerSecond,
			Burst:             scfg.RateLimit.Burst,
		}
	}

	log.Info("supervisor ready", "id", scfg.ID, "addr", scfg.Addr, "agents", registry.Len())
	return a.serve(ctx, httpapi.NewServer(scfg.Addr, httpapi.NewSupervisorHandler(deps), log))
}

// loadAgents merges the registry file (if any) with inline config agents.
func loadAgents(scfg config.SupervisorConfig) ([]domain.AgentDescriptor, error) {
	var descs []domain.AgentDescriptor
	if scfg.RegistryFile != "" {
		fromFile, err := multiagent.LoadFile(scfg.RegistryFile)
		if err != nil {
			return nil, err
		}
		descs = append(descs, fromFile...)
	}
	return append(descs, multiagent.DescriptorsFromConfig(scfg.Agents)...), nil
}

