package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/tdermendjiev/aiwe-client/internal/adapters"
	"github.com/tdermendjiev/aiwe-client/internal/agent"
	"github.com/tdermendjiev/aiwe-client/internal/catalog"
	"github.com/tdermendjiev/aiwe-client/internal/engine"
	"github.com/tdermendjiev/aiwe-client/internal/gateway"
	"github.com/tdermendjiev/aiwe-client/internal/governance"
	"github.com/tdermendjiev/aiwe-client/internal/observability"
	"github.com/tdermendjiev/aiwe-client/internal/oracle"
	"github.com/tdermendjiev/aiwe-client/internal/store"
	"github.com/tdermendjiev/aiwe-client/pkg/config"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig("config.yaml")

	memory, err := store.NewStore(cfg.MemoryPath())
	if err != nil {
		log.Fatal(err)
	}

	// Local adapters, the third catalog tier
	registry := adapters.NewRegistry()

	searchAdapter, err := adapters.NewSearchAdapter()
	if err != nil {
		log.Printf("Warning: failed to initialize search adapter: %v", err)
	} else {
		registry.Register(searchAdapter)
	}
	registry.Register(adapters.NewWebpageAdapter())
	registry.Register(adapters.NewBrowserAdapter())
	registry.Register(adapters.NewWorkspaceAdapter(cfg.App.Workspace))
	registry.Register(adapters.NewShellAdapter())
	registry.Register(adapters.NewSchedulerAdapter(memory))

	gov := governance.NewDefaultPolicyEngine()
	// Default safety rules: Block dangerous destructive commands
	_ = gov.DenyArguments(`rm\s+-rf`)
	_ = gov.DenyArguments(`mkfs`)
	_ = gov.DenyArguments(`shutdown`)
	_ = gov.DenyArguments(`reboot`)

	logger := observability.NewLogger()
	prompts := oracle.NewPromptManager(cfg.Prompts.Directory)

	// Initialize LLM (using default enabled provider)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm llms.Model
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}

	if err != nil {
		log.Fatal(err)
	}

	brainOracle := oracle.NewClient(llm, prompts, logger)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}
	source := catalog.NewSource(httpClient, cfg.Registry.Base, registry)
	executor := engine.NewExecutor(httpClient, cfg.Registry.Base, cfg.ServiceCredentials(), registry)

	assistant := agent.NewAssistant(brainOracle, source, memory, executor)
	assistant.Policy = gov
	assistant.Logger = logger
	assistant.MaxAttempts = cfg.Engine.MaxAttempts
	assistant.RetryDelay = cfg.RetryDelay()
	assistant.MaxResets = cfg.Engine.MaxEscalationResets

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpGw := gateway.NewHTTPGateway(cfg.ListenAddr(), assistant)

	// Scheduled instruction output goes to Telegram when configured,
	// otherwise it lands in the logs via the HTTP gateway.
	var schedulerOut agent.Messenger = httpGw
	var tg *gateway.TelegramGateway
	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err = gateway.NewTelegramGateway(tgCfg.Token, assistant)
		if err != nil {
			log.Fatal(err)
		}
		schedulerOut = tg
		go func() {
			if err := tg.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] TELEGRAM GATEWAY ERROR: %v\033[0m", err)
			}
		}()
	}

	scheduler := agent.NewScheduler(assistant, memory, schedulerOut)
	go scheduler.Start(ctx)

	// Start Live Resource Dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				logger.LogHeartbeat()
			}
		}
	}()

	// Start the HTTP gateway in a goroutine so we can wait for context
	// in the main loop
	go func() {
		if err := httpGw.Start(); err != nil {
			log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
			stop() // stop caller if gateway dies
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	httpGw.Stop()
	if tg != nil {
		tg.Stop()
	}
	memory.Close()

	// Reset terminal aesthetics
	observability.CleanupTerminal()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] CLIENT DE-INITIALIZED. GOODBYE.\033[0m")
}
