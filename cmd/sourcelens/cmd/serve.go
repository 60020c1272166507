package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sourcelens/sourcelens/internal/config"
	"github.com/sourcelens/sourcelens/internal/embed"
	"github.com/sourcelens/sourcelens/internal/logging"
	"github.com/sourcelens/sourcelens/internal/mcpserver"
	"github.com/sourcelens/sourcelens/internal/memory"
	"github.com/sourcelens/sourcelens/internal/search"
	"github.com/sourcelens/sourcelens/internal/store"
	"github.com/sourcelens/sourcelens/internal/watcher"
)

// BUG-034/BUG-035: the tool-call protocol reserves stdout exclusively for
// JSON-RPC frames. Any stray write to stdout (or, in MCP mode, stderr)
// before or during serving corrupts the stream and the client sees
// "Failed to connect". newServeCmd and runServe* exist to keep that
// boundary: all logging goes through logging.SetupMCPMode, never the
// default stderr-writing logger the rest of the CLI uses.
func newServeCmd() *cobra.Command {
	var (
		debug     bool
		transport string
		session   string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tool-call server for AI assistant integration",
		Long: `Start the tool-call server, exposing the indexed codebase's search,
GraphRAG, and memory tools to an AI assistant over stdio (the default) or
HTTP.

Run 'sourcelens index' first so there is something to search.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if session != "" {
				return runServeWithSession(ctx, transport, port, session, debug)
			}
			return runServe(ctx, transport, port)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug-level logging to the MCP log file")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or http")
	cmd.Flags().StringVar(&session, "session", "", "Named session tag, recorded in server logs")
	cmd.Flags().IntVar(&port, "port", 8787, "Port to listen on when --transport=http")

	return cmd
}

// runServe starts the tool-call server with no session tag.
func runServe(ctx context.Context, transport string, port int) error {
	return serve(ctx, transport, port, "", false)
}

// runServeWithSession starts the tool-call server tagged with a session
// name, the path exercised by `serve --session=...`. BUG-035: an earlier
// fix enabled MCP-safe logging only on the no-session path; this path must
// get the same treatment.
func runServeWithSession(ctx context.Context, transport string, port int, session string, debug bool) error {
	return serve(ctx, transport, port, session, debug)
}

func serve(ctx context.Context, transport string, port int, session string, debug bool) error {
	level := "info"
	if debug {
		level = "debug"
	}
	cleanup, err := logging.SetupMCPModeWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to initialize MCP-safe logging: %w", err)
	}
	defer cleanup()

	logger := slog.Default()
	if session != "" {
		logger = logger.With(slog.String("session", session))
	}

	if transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			return err
		}
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	dataDir := filepath.Join(root, ".sourcelens")
	metadataPath := filepath.Join(dataDir, "metadata.db")
	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found in %s. Run 'sourcelens index' first", root)
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	bundle, closeBundle, err := buildBundle(ctx, root, dataDir, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer closeBundle()

	// BUG-035: the file watcher's initial directory walk can take seconds on
	// slow filesystems; the MCP handshake has no such budget. Start it in the
	// background instead of waiting on it here.
	go startBackgroundWatcher(ctx, root, logger)

	server := mcpserver.NewServer(bundle, logger)
	logger.Info("mcpserver starting", slog.String("transport", transport), slog.String("root", root))

	switch transport {
	case "stdio":
		return server.ServeStdio(ctx, os.Stdin, os.Stdout)
	case "http":
		return serveHTTP(ctx, server, port, logger)
	default:
		return fmt.Errorf("unsupported transport %q: use stdio or http", transport)
	}
}

// serveHTTP runs a single-project HTTP listener at /rpc. Multi-repo HTTP
// serving (one listener fronting many projects) is mcpserver.Multiplexer's
// job, not this command's; serve always binds to the project found in the
// current directory.
func serveHTTP(ctx context.Context, server *mcpserver.Server, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20+1))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		resp, err := server.HandleMessage(r.Context(), body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write(resp)
	})

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		logger.Info("mcpserver http stopped")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// verifyStdinForMCP rejects an interactive terminal on stdin: a human typing
// into the stdio transport will never produce a valid JSON-RPC frame, and
// the resulting hang is a confusing way to discover the mistake.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal, not a pipe: the stdio transport expects JSON-RPC frames piped in by an MCP client, not interactive input")
	}
	return nil
}

// buildBundle opens the project's stores and wires a mcpserver.Bundle from
// them. The returned close func releases every opened handle; call it
// exactly once.
func buildBundle(ctx context.Context, root, dataDir string, cfg *config.Config) (*mcpserver.Bundle, func(), error) {
	metadataPath := filepath.Join(dataDir, "metadata.db")
	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	bm25BasePath := filepath.Join(dataDir, "bm25")
	bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), cfg.Search.BM25Backend)
	if err != nil {
		_ = metadata.Close()
		return nil, nil, fmt.Errorf("failed to open BM25 index: %w", err)
	}

	vectorPath := filepath.Join(dataDir, "vectors.hnsw")
	existingDims, err := store.ReadHNSWStoreDimensions(vectorPath)
	if err != nil {
		existingDims = 0
	}

	modelSpec := cfg.Embeddings.CodeModel
	if cfg.Embeddings.Provider != "" {
		_, model := splitModelSpec(modelSpec)
		modelSpec = cfg.Embeddings.Provider + ":" + model
	}
	embedder, err := embed.NewEmbedder(ctx, modelSpec)
	if err != nil {
		_ = bm25.Close()
		_ = metadata.Close()
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	dimensions := embedder.Dimensions()
	if existingDims == 0 {
		existingDims = dimensions
	}

	vectorConfig := store.DefaultVectorStoreConfig(dimensions)
	vector, err := store.NewHNSWStore(vectorConfig)
	if err != nil {
		_ = embedder.Close()
		_ = bm25.Close()
		_ = metadata.Close()
		return nil, nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	if _, err := os.Stat(vectorPath); err == nil {
		if loadErr := vector.Load(vectorPath); loadErr != nil {
			slog.Debug("vector_load_failed", slog.String("error", loadErr.Error()))
		}
	}

	engineConfig := search.DefaultConfig()
	if cfg.Search.MaxResults > 0 {
		engineConfig.DefaultLimit = cfg.Search.MaxResults
	}
	if cfg.Search.BM25Weight > 0 || cfg.Search.SemanticWeight > 0 {
		engineConfig.DefaultWeights = search.Weights{
			BM25:     cfg.Search.BM25Weight,
			Semantic: cfg.Search.SemanticWeight,
		}
	}
	engine := search.New(bm25, vector, embedder, metadata, engineConfig,
		search.WithMultiQuerySearch(search.NewPatternDecomposer()))

	var graphStore store.GraphStore
	var graphEmbed embed.Embedder
	if cfg.GraphRAG.Enabled {
		graphStore = metadata
		graphEmbed = embedder
	}

	memMgr := memory.NewManager(metadata, embedder, hashString(root))

	bundle := mcpserver.NewBundle(hashString(root), root, engine, metadata, embedder, graphStore, memMgr)
	bundle.GraphEmbed = graphEmbed

	closeFn := func() {
		_ = vector.Close()
		_ = embedder.Close()
		_ = bm25.Close()
		_ = metadata.Close()
	}
	return bundle, closeFn, nil
}

// startBackgroundWatcher starts the file watcher without blocking server
// startup on it. Changes are logged but not yet wired to incremental
// reindexing from this command; that lives in the index command's own
// coordinator.
func startBackgroundWatcher(ctx context.Context, root string, logger *slog.Logger) {
	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		logger.Warn("watcher init failed", slog.String("error", err.Error()))
		return
	}
	if err := w.Start(ctx, root); err != nil {
		logger.Warn("watcher start failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-w.Events():
			if !ok {
				return
			}
			logger.Debug("watcher events", slog.Int("count", len(events)))
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}
