package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/solacehq/solace/internal/api"
	"github.com/solacehq/solace/internal/config"
	"github.com/solacehq/solace/internal/index"
	"github.com/solacehq/solace/internal/ingest"
	"github.com/solacehq/solace/internal/llm"
	"github.com/solacehq/solace/internal/ollama"
	"github.com/solacehq/solace/internal/recommend"
	"github.com/solacehq/solace/internal/reply"
	"github.com/solacehq/solace/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the solace server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running solace server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show solace system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the engine over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "solace.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func initLogging(cfg config.Config) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// newCompleter picks the generation backend. A nil completer means the reply
// composer always uses templates.
func newCompleter(cfg config.Config, ollamaClient *ollama.Client) llm.Completer {
	switch cfg.Generation.Backend {
	case config.BackendXAI:
		url := cfg.Generation.XAIAPIURL
		if url == "" {
			url = llm.DefaultXAIURL
		}
		return llm.NewXAI(url, cfg.Generation.XAIAPIKey, cfg.Generation.Model)
	case config.BackendOllama:
		return llm.NewLocal(ollamaClient, cfg.Ollama.ChatModel)
	default:
		return nil
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "solace version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogging(cfg)

	if cfg.Server.APIToken == "" {
		return fmt.Errorf("no API token configured; set SOLACE_API_TOKEN")
	}

	// Refuse to double-start: probe the health endpoint first.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("solace is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("solace is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The chat model is only pulled when Ollama does the generating.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	chatModel := ""
	if cfg.Generation.Backend == config.BackendOllama {
		chatModel = cfg.Ollama.ChatModel
	}
	if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.EmbedModel, chatModel, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	composer := reply.NewComposer(newCompleter(cfg, ollamaClient), time.Duration(cfg.Generation.TimeoutMS)*time.Millisecond)

	idx := index.New(ollamaClient, cfg.Ollama.EmbedModel)
	builder := index.NewBuilder(store, ollamaClient, cfg.Ollama.EmbedModel)

	// The initial build embeds any verses without vectors, which can take a
	// while on a fresh corpus. /health stays 503 until the snapshot lands.
	go func() {
		snap, err := builder.Build(ctx)
		if err != nil {
			slog.Error("initial index build failed", "error", err)
			return
		}
		idx.Publish(snap)
		slog.Info("index published", "size", snap.Size())
	}()

	engine := recommend.New(store, idx, composer,
		recommend.WithWindow(cfg.Engine.RecencyWindow),
		recommend.WithTopK(cfg.Engine.TopK),
	)

	handler := api.NewHandler(api.Deps{
		Store:  store,
		Engine: engine,
		Index:  idx,
		Reindex: api.ReindexFunc(func(ctx context.Context) (int, error) {
			snap, err := builder.Build(ctx)
			if err != nil {
				return 0, err
			}
			idx.Publish(snap)
			return snap.Size(), nil
		}),
		Token: cfg.Server.APIToken,
	})

	// Background worker embeds verses queued by POST /verses.
	worker := ingest.NewWorker(store, ollamaClient, cfg.Ollama.EmbedModel, 500*time.Millisecond)
	go worker.Run(ctx)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "solace listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runMCP serves the engine over stdio without the HTTP server. The index is
// built up front so semantic search works from the first tool call.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	chatModel := ""
	if cfg.Generation.Backend == config.BackendOllama {
		chatModel = cfg.Ollama.ChatModel
	}
	if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.EmbedModel, chatModel, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	idx := index.New(ollamaClient, cfg.Ollama.EmbedModel)
	builder := index.NewBuilder(store, ollamaClient, cfg.Ollama.EmbedModel)
	snap, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	idx.Publish(snap)

	composer := reply.NewComposer(newCompleter(cfg, ollamaClient), time.Duration(cfg.Generation.TimeoutMS)*time.Millisecond)
	engine := recommend.New(store, idx, composer,
		recommend.WithWindow(cfg.Engine.RecencyWindow),
		recommend.WithTopK(cfg.Engine.TopK),
	)

	mcpSrv := api.NewMCPServer(api.Deps{
		Store:  store,
		Engine: engine,
		Index:  idx,
	})

	stdioSrv := mcpserver.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("solace is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop solace (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to solace (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		case http.StatusServiceUnavailable:
			running = true
			printStatus("Server", "starting (index not built yet)")
		default:
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Generation", "%s", cfg.Generation.Backend)

	if running && cfg.Server.APIToken != "" {
		req, _ := http.NewRequest("GET", serverURL+"/stats", nil)
		req.Header.Set("Authorization", "Bearer "+cfg.Server.APIToken)
		if statsResp, err := client.Do(req); err == nil {
			var stats struct {
				Verses      int  `json:"verses"`
				PendingJobs int  `json:"pending_jobs"`
				IndexReady  bool `json:"index_ready"`
				IndexSize   int  `json:"index_size"`
			}
			if json.NewDecoder(statsResp.Body).Decode(&stats) == nil {
				printStatus("Verses", "%d", stats.Verses)
				printStatus("Indexed", "%d", stats.IndexSize)
				printStatus("Pending jobs", "%d", stats.PendingJobs)
			}
			statsResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
