// vocabchat is a terminal client for the vocab site's AI chat backend:
// it streams single-turn replies word by word, or fetches them whole in
// batched mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"vocabchat/internal/adapter/chatapi"
	"vocabchat/internal/adapter/tui"
	"vocabchat/internal/domain"
	"vocabchat/internal/infra/config"
	"vocabchat/internal/infra/logger"
	"vocabchat/internal/infra/tracer"
	"vocabchat/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vocabchat:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", defaultConfigPath(), "path to the YAML config file")
		serverURL  = flag.String("server", "", "chat backend base URL (overrides config)")
		modelName  = flag.String("model", "", "model identifier (overrides config)")
		batched    = flag.Bool("batched", false, "use the batched transport instead of streaming")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return domain.WrapOp("load config", err)
	}
	if *serverURL != "" {
		cfg.Server.BaseURL = *serverURL
	}
	if *modelName != "" {
		cfg.Chat.Model = *modelName
	}
	if *batched {
		cfg.Chat.Streaming = false
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return domain.WrapOp("init logger", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return domain.WrapOp("init tracer", err)
	}
	defer shutdownTracer(context.Background())

	client := chatapi.New(cfg.Server, log)
	var transport domain.ChatTransport = client
	if cfg.Breaker.Enabled {
		transport = chatapi.NewBreakerClient(client, cfg.Breaker, log)
	}

	// Preset key listing is fetched once per process; a failure is
	// swallowed — the inline secret remains usable.
	presets, err := client.Keys(ctx)
	if err != nil {
		log.Warn("preset key fetch failed, custom key only", "error", err)
		presets = nil
	}
	keys := usecase.NewKeySelector(presets)
	if cfg.Chat.APIKey != "" {
		keys.SelectCustom()
		keys.SetSecret(cfg.Chat.APIKey)
	}

	mode := domain.ModeStreaming
	if !cfg.Chat.Streaming {
		mode = domain.ModeBatched
	}

	sink := tui.NewSink()
	controller := usecase.NewSessionController(usecase.SessionControllerDeps{
		Transport: transport,
		Keys:      keys,
		Sink:      sink,
		Logger:    log,
		Model:     cfg.Chat.Model,
		System:    cfg.Chat.System,
		Mode:      mode,
	})

	chatModel := tui.NewModel(tui.ModelDeps{
		Controller: controller,
		Keys:       keys,
		Logger:     log,
		ModelName:  cfg.Chat.Model,
	})
	program := tea.NewProgram(chatModel, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(program)

	log.Info("vocabchat starting",
		"server", cfg.Server.BaseURL,
		"model", cfg.Chat.Model,
		"mode", mode.String(),
		"preset_keys", len(presets),
	)

	if _, err := program.Run(); err != nil {
		return domain.WrapOp("run tui", err)
	}
	return nil
}

// defaultConfigPath returns $HOME/.vocabchat/config.yaml, falling back
// to the working directory when $HOME cannot be determined.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vocabchat.yaml"
	}
	return filepath.Join(home, ".vocabchat", "config.yaml")
}
