package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/loader"
	"docrag/internal/logger"
	"docrag/internal/server"
	"docrag/internal/service"
	"docrag/internal/tui"
)

var (
	cfgPath string
	cfg     *config.AppConfig
	asJSON  bool
)

var rootCmd = &cobra.Command{
	Use:           "docrag",
	Short:         "Question answering over BIDV documents with retrieval-augmented generation.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()

		var err error
		var path string
		if cfgPath == "" {
			cfg, path, err = config.LoadDefault()
		} else {
			path = cfgPath
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := logger.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
			return err
		}
		log.Debug().Str("path", path).Str("command", cmd.Name()).Msg("config loaded")
		return cfg.Validate()
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <files...>",
	Short: "Chunk, embed and index .txt and .md files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		var docs []domain.Document
		var results []service.IngestResult
		for _, path := range loader.Expand(args) {
			doc, err := loader.Load(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("skipping file")
				results = append(results, service.IngestResult{Source: path, Status: service.StatusFailure, Err: err.Error()})
				continue
			}
			docs = append(docs, doc)
		}
		indexed, err := a.svc.Ingest(cmd.Context(), docs)
		results = append(results, indexed...)
		if asJSON {
			printJSON(results)
		} else {
			for _, r := range results {
				fmt.Printf("%-8s %s chunks=%d skipped=%d %s\n", r.Status, r.Source, r.Chunks, r.Skipped, r.Err)
			}
		}
		return err
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer one question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		ans, err := a.svc.Query(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if asJSON {
			printJSON(ans)
			return nil
		}
		fmt.Println(ans.Response)
		for i, c := range ans.Contexts {
			fmt.Printf("\n[%d] %s\n", i+1, c)
		}
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question answering",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		st, err := a.svc.Stats(cmd.Context())
		if err != nil {
			return err
		}
		summary := fmt.Sprintf("%d đoạn trong chỉ mục · embedder %s · top_k %d", st.Index.Count, st.Embedder, st.TopK)
		// keep log lines from tearing the screen
		if err := logger.SetupWriter(tuiLogSink(), cfg.Log.Level, "json"); err != nil {
			return err
		}
		_, err = tea.NewProgram(tui.New(a.svc, summary, 0), tea.WithAltScreen()).Run()
		return err
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics and effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		st, err := a.svc.Stats(cmd.Context())
		if err != nil {
			return err
		}
		printJSON(st)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		s := server.New(cfg.Server.Addr, a.svc, a.metrics)
		errc := make(chan error, 1)
		go func() { errc <- s.Start() }()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return s.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./config.yaml, then ~/.config/docrag/config.yaml)")
	ingestCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	queryCmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	rootCmd.AddCommand(ingestCmd, queryCmd, chatCmd, statsCmd, serveCmd)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// tuiLogSink sends logs to docrag.log while the chat screen is up.
func tuiLogSink() *os.File {
	f, err := os.OpenFile("docrag.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stderr
	}
	return f
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("docrag failed")
		if errors.Is(err, config.ErrInvalid) || errors.Is(err, domain.ErrDimensionMismatch) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
