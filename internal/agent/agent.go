// Package agent implements the TatuScan collection agent: it gathers machine
// facts on a schedule and reports them to the inventory API.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/carlosrabelo/tatuscan/internal/apiclient"
)

// Agent runs the collect-and-report cycle on a fixed interval.
type Agent struct {
	cfg    *Config
	log    *zap.Logger
	client *apiclient.Client
	sched  gocron.Scheduler
}

// New wires an agent from its configuration. The first cycle runs as soon as
// Start is called, later ones on the configured interval.
func New(cfg *Config, log *zap.Logger) (*Agent, error) {
	a := &Agent{
		cfg:    cfg,
		log:    log,
		client: apiclient.New(apiclient.WithAPIPath(cfg.URL)),
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(a.cycle),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return nil, fmt.Errorf("schedule collection job: %w", err)
	}
	a.sched = sched
	return a, nil
}

// Start begins the collection schedule and returns immediately.
func (a *Agent) Start() {
	a.log.Info("starting agent",
		zap.String("url", a.cfg.URL),
		zap.Duration("interval", a.cfg.Interval))
	a.sched.Start()
}

// Shutdown stops the schedule and flushes the log.
func (a *Agent) Shutdown() error {
	a.log.Info("shutting down agent")
	err := a.sched.Shutdown()
	a.log.Sync() //nolint:errcheck
	return err
}

// RunOnce performs a single collect-and-report cycle.
func (a *Agent) RunOnce(ctx context.Context) error {
	payload, err := Collect(a.log)
	if err != nil {
		return fmt.Errorf("collect machine data: %w", err)
	}
	created, err := a.client.Report(ctx, payload)
	if err != nil {
		return fmt.Errorf("report machine data: %w", err)
	}
	a.log.Info("report delivered",
		zap.String("machine_id", payload.MachineID),
		zap.String("hostname", payload.Hostname),
		zap.Bool("created", created))
	return nil
}

func (a *Agent) cycle() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.RunOnce(ctx); err != nil {
		a.log.Error("collection cycle failed", zap.Error(err))
	}
}
