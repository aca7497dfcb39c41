package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"yfitg/scout/internal/button"
	"yfitg/scout/internal/config"
	"yfitg/scout/internal/display"
	"yfitg/scout/internal/domain"
	"yfitg/scout/internal/logger"
	"yfitg/scout/internal/orchestrator"
	"yfitg/scout/internal/report"
	"yfitg/scout/internal/retry"
	"yfitg/scout/internal/scan"
	"yfitg/scout/internal/scope"
	"yfitg/scout/internal/summarize"
	"yfitg/scout/internal/trigger"
	"yfitg/scout/internal/upload"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		configFile  = flag.String("config", "/etc/scout/config.yaml", "Path to device config YAML")
		versionFlag = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Scout network assessment device v%s (%s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLoggerToStructured(level, cfg.Log.File)

	l := log.WithField("device_id", cfg.DeviceID)
	l.WithFields(log.Fields{"version": version, "commit": commit}).Info("Scout starting")

	orch, err := buildPipeline(l, cfg)
	if err != nil {
		l.WithError(err).Fatal("Could not build pipeline")
	}

	disp := &display.LogDisplay{Log: l.WithField("component", "display")}
	disp.Render(domain.StateIdle, 0, "")

	mqttClient := &trigger.Client{
		Log:      l.WithField("component", "trigger"),
		DeviceID: cfg.DeviceID,
		Config:   cfg.MQTT,
		Handler: func(req domain.StartRequest) {
			if err := orch.Submit(req); err != nil {
				l.WithError(err).WithField("consent_id", req.ConsentID).Warn("Start command rejected")
			}
		},
	}
	if err := mqttClient.Connect(); err != nil {
		// The paho client keeps retrying in the background; startup proceeds.
		l.WithError(err).Warn("Initial broker connection failed, retrying in background")
	}
	defer mqttClient.Close()

	presses := &button.Handler{
		Log:       l.WithField("component", "button"),
		LongPress: cfg.Button.LongPress,
		OnShort: func() {
			st := orch.Status()
			disp.Render(st.State, 0, fmt.Sprintf("%s (%d findings, %s elapsed)",
				display.StatusLine(st.State), st.Findings, st.Elapsed.Round(time.Second)))
		},
		OnLong: orch.Abort,
	}

	// SIGUSR1/SIGUSR2 stand in for the GPIO edge layer: short and long press
	// respectively. The hardware build feeds the same Handler from pin edges.
	press := make(chan os.Signal, 4)
	signal.Notify(press, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for s := range press {
			if s == syscall.SIGUSR2 {
				presses.Press(cfg.Button.LongPress)
			} else {
				presses.Press(0)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	l.WithField("signal", s.String()).Info("Shutting down")

	orch.Abort()
	waitForIdle(orch, 30*time.Second)
}

func buildPipeline(l *log.Entry, cfg *config.Config) (*orchestrator.Orchestrator, error) {
	validator, err := scope.NewValidator(
		l.WithField("component", "scope"),
		cfg.Scanning.AllowedRanges,
		cfg.Scanning.MaxHosts,
	)
	if err != nil {
		return nil, fmt.Errorf("scope validator: %w", err)
	}

	scanLog := l.WithField("component", "scan")
	runners := map[scan.ToolKind]scan.ToolRunner{
		scan.ToolNmap: &scan.NmapRunner{
			Log: scanLog,
			Config: scan.NmapConfig{
				Ports:   cfg.Scanning.Ports,
				Timing:  cfg.Scanning.Timing,
				MinRate: cfg.Scanning.MinRate,
			},
		},
		scan.ToolWebProbe: &scan.NiktoRunner{Log: scanLog},
		scan.ToolTLSCheck: &scan.TLSRunner{Log: scanLog},
	}

	executor := &scan.Executor{
		Log:         scanLog,
		Workers:     cfg.Scanning.Workers,
		Limiter:     rate.NewLimiter(rate.Limit(cfg.Scanning.DispatchRate), 1),
		HostTimeout: cfg.Scanning.HostTimeout,
		Runners:     runners,
	}

	summarizer := &summarize.Summarizer{
		Log:      l.WithField("component", "summarize"),
		Endpoint: cfg.Inference.Endpoint,
		Timeout:  cfg.Inference.Timeout,
	}

	builder := &report.Builder{
		Log: l.WithField("component", "report"),
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		baseDir = "/var/lib/scout"
	}
	store := &upload.LocalStore{Dir: filepath.Join(baseDir, "reports")}

	uploader := &upload.Uploader{
		Log:    l.WithField("component", "upload"),
		URL:    cfg.Collector.APIURL,
		Token:  cfg.Collector.APIToken,
		Client: &http.Client{Timeout: cfg.Collector.Timeout},
		Store:  store,
		Retry: retry.Config{
			MaxAttempts: cfg.Collector.MaxAttempts,
			InitDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Jitter:      true,
		},
		Budget: cfg.Collector.RetryBudget,
	}

	pending, err := store.Pending()
	if err == nil && len(pending) > 0 {
		l.WithField("count", len(pending)).Warn("Artifacts pending upload from earlier runs")
	}

	return orchestrator.New(
		l.WithField("component", "orchestrator"),
		orchestrator.Config{MaxDuration: cfg.Scanning.MaxDuration},
		orchestrator.Pipeline{
			Validator:  validator,
			Planner:    scan.Planner{},
			Executor:   executor,
			Summarizer: summarizer,
			Builder:    builder,
			Uploader:   uploader,
			Display:    &display.LogDisplay{Log: l.WithField("component", "display")},
		},
	), nil
}

// waitForIdle blocks until the active run (if any) reaches its terminal state
// and releases, so a SIGTERM never strands an artifact mid-upload.
func waitForIdle(orch *orchestrator.Orchestrator, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if orch.State() == domain.StateIdle {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}
