package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kardianos/service"
	"go.uber.org/zap"

	"github.com/carlosrabelo/tatuscan/internal/agent"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

// program adapts the agent to the service manager lifecycle.
type program struct {
	agent *agent.Agent
}

func (p *program) Start(_ service.Service) error {
	p.agent.Start()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	return p.agent.Shutdown()
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	once := flag.Bool("once", false, "collect and report once, then exit")
	flag.Parse()

	cfg, err := agent.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tatuscan-agent:", err)
		os.Exit(1)
	}

	logger, err := agent.NewLogger(cfg.Logging, service.Interactive())
	if err != nil {
		fmt.Fprintln(os.Stderr, "tatuscan-agent:", err)
		os.Exit(1)
	}

	logger.Info("tatuscan agent starting",
		zap.String("version", version),
		zap.String("commit", commit))

	a, err := agent.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize agent", zap.Error(err))
	}

	svcConfig := &service.Config{
		Name:        "TatuScanAgent",
		DisplayName: "TatuScan Agent",
		Description: "TatuScan monitoring agent",
	}
	prg := &program{agent: a}
	svc, err := service.New(prg, svcConfig)
	if err != nil {
		logger.Fatal("failed to create service", zap.Error(err))
	}

	// Service management commands: install, uninstall, start, stop, restart.
	if flag.NArg() > 0 {
		for _, action := range flag.Args() {
			if err := service.Control(svc, action); err != nil {
				logger.Fatal("service control failed",
					zap.String("action", action), zap.Error(err))
			}
		}
		return
	}

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		runErr := a.RunOnce(ctx)
		if err := a.Shutdown(); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
		if runErr != nil {
			logger.Fatal("report failed", zap.Error(runErr))
		}
		return
	}

	if service.Interactive() {
		a.Start()
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		if err := a.Shutdown(); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
		return
	}

	if err := svc.Run(); err != nil {
		logger.Fatal("service run failed", zap.Error(err))
	}
}
