package multiagent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
)

const maxConcurrentProbes = 8

// ProberConfig configures a Prober.
type ProberConfig struct {
	Interval time.Duration // between probe rounds
	Timeout  time.Duration // per agent
}

// Prober keeps registry health current by polling each agent's health
// endpoint on a fixed schedule.
type Prober struct {
	registry  *Registry
	transport WorkerTransport
	cfg       ProberConfig
	logger    *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewProber creates a Prober.
func NewProber(registry *Registry, transport WorkerTransport, cfg ProberConfig, log *slog.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = domain.DefaultHealthCheckInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = domain.DefaultProbeTimeout
	}
	return &Prober{
		registry:  registry,
		transport: transport,
		cfg:       cfg,
		logger:    logger.OrDiscard(log),
		cron:      cron.New(),
	}
}

// Start runs one probe round, then schedules further rounds every
// Interval until Stop is called or ctx ends.
func (p *Prober) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	if err := p.ProbeAll(p.ctx); err != nil {
		p.cancel()
		return err
	}

	p.cron.Schedule(constantDelay{delay: p.cfg.Interval}, cron.FuncJob(func() {
		if err := p.ProbeAll(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("health probe round failed", "error", err)
		}
	}))
	p.cron.Start()
	p.started = true
	p.logger.Info("health prober started", "interval", p.cfg.Interval, "timeout", p.cfg.Timeout)
	return nil
}

// Stop cancels in-flight probes and waits for a running round to finish.
func (p *Prober) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.cancel()
	<-p.cron.Stop().Done()
	p.started = false
}

// ProbeAll probes every registered agent concurrently and records the
// results. An unreachable agent is marked offline.
func (p *Prober) ProbeAll(ctx context.Context) error {
	agents := p.registry.List()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for _, desc := range agents {
		g.Go(func() error {
			if state, ok := p.probe(gctx, desc); ok {
				p.record(desc.ID, state)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Debug("health probe round complete", "agents", len(agents))
	return nil
}

// Probe checks one agent on demand and returns its new health.
func (p *Prober) Probe(ctx context.Context, agentID string) (domain.AgentDescriptor, error) {
	desc, err := p.registry.Get(agentID)
	if err != nil {
		return domain.AgentDescriptor{}, err
	}
	state, ok := p.probe(ctx, desc)
	if !ok {
		return domain.AgentDescriptor{}, ctx.Err()
	}
	p.record(agentID, state)
	return p.registry.Get(agentID)
}

// probe reports ok=false once parent has ended; nothing is recorded then.
func (p *Prober) probe(parent context.Context, desc domain.AgentDescriptor) (domain.HealthState, bool) {
	ctx, cancel := context.WithTimeout(parent, p.cfg.Timeout)
	defer cancel()

	rep, err := p.transport.Health(ctx, desc.Address)
	if parent.Err() != nil {
		return "", false
	}
	if err != nil {
		p.logger.Debug("health probe failed", "agent_id", desc.ID, "error", err)
		return domain.HealthOffline, true
	}
	switch rep.Status {
	case domain.HealthHealthy, domain.HealthDegraded:
		return rep.Status, true
	default:
		return domain.HealthOffline, true
	}
}

func (p *Prober) record(agentID string, state domain.HealthState) {
	// The agent may have been removed while the probe was in flight.
	if err := p.registry.SetHealth(agentID, state); err != nil && !errors.Is(err, domain.ErrAgentNotFound) {
		p.logger.Warn("failed to record agent health", "agent_id", agentID, "error", err)
	}
}

// constantDelay is a cron.Schedule firing at a fixed interval, including
// sub-second ones.
type constantDelay struct {
	delay time.Duration
}

func (d constantDelay) Next(t time.Time) time.Time {
	return t.Add(d.delay)
}
