package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alienxp03/rhetor/internal/app"
	"github.com/alienxp03/rhetor/internal/config"
	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/export"
	"github.com/alienxp03/rhetor/internal/format"
	"github.com/alienxp03/rhetor/internal/persona"
	"github.com/alienxp03/rhetor/internal/provider"
)

var (
	cfgPath   string
	debug     bool
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rhetor",
	Short: "Debate practice with AI opponents",
	Long: `rhetor runs debate sessions between a learner and an AI opponent.

Configure topics and positions, argue them turn by turn against a
historical thinker, then get scored feedback on your performance.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		var err error
		appConfig, err = config.LoadFrom(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.rhetor/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(debatesCmd)
	rootCmd.AddCommand(learningsCmd)
	rootCmd.AddCommand(opponentsCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(configCmd)
}

func openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, appConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}

// ============================================================================
// SERVE COMMAND
// ============================================================================

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			appConfig.Server.Port = servePort
		}
		if !debug {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("\nStarting rhetor on http://localhost:%d\n", appConfig.Server.Port)
		fmt.Println("Press Ctrl+C to stop the server")
		return a.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8182, "Server port")
}

// ============================================================================
// DEBATES COMMAND
// ============================================================================

var debatesCmd = &cobra.Command{
	Use:   "debates",
	Short: "Inspect stored debates",
}

var listLearning string

var debatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List debates, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		debates := a.Engine.List(ctx, listLearning)
		if len(debates) == 0 {
			fmt.Println("No debates found. Start one with: rhetor serve")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTOPICS\tOPPONENT\tSTATUS\tUPDATED")
		for _, d := range debates {
			status := "draft"
			if d.IsCompleted {
				status = "completed"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				shortID(d.ID),
				truncate(d.DebateName, 35),
				len(d.Topics),
				d.Opponent,
				status,
				formatMillis(d.Timestamp),
			)
		}
		return w.Flush()
	},
}

var debatesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a debate transcript and feedback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := loadDocument(ctx, a, args[0])
		if err != nil {
			return err
		}
		cfg := doc.Config

		fmt.Printf("\nDebate: %s\n", doc.Title())
		fmt.Printf("   ID: %s\n", cfg.ID)
		fmt.Printf("   Opponent: %s\n", doc.OpponentName())
		fmt.Printf("   Turns per topic: %d\n", cfg.TurnCount)
		fmt.Printf("   Completed: %t\n", cfg.IsCompleted)
		fmt.Printf("   Updated: %s\n", formatMillis(cfg.Timestamp))
		for _, t := range cfg.Topics {
			fmt.Printf("   %s: %s\n", t, cfg.Positions[t])
		}

		if len(doc.Messages) > 0 {
			fmt.Println()
			fmt.Println(strings.Repeat("-", 60))
			for _, m := range doc.Messages {
				speaker := "You"
				if m.Speaker == core.SpeakerOpponent {
					speaker = doc.OpponentName()
				}
				fmt.Printf("\n[%s / %s] %s\n", m.Topic, m.TurnType, speaker)
				fmt.Println(m.Content)
			}
		}

		if s := doc.Summary; s != nil {
			fmt.Println()
			fmt.Println(strings.Repeat("-", 60))
			fmt.Printf("Score: %d/100\n", s.Score)
			fmt.Printf("\nStrengths:\n%s\n", s.Strengths)
			fmt.Printf("\nWeaknesses:\n%s\n", s.Weaknesses)
			fmt.Printf("\nRecommendations:\n%s\n", s.Recommendations)
			for _, sk := range s.Skills {
				fmt.Printf("   %-20s %3d\n", sk.Name, sk.Value)
			}
		}
		return nil
	},
}

var debatesExportCmd = &cobra.Command{
	Use:   "export [id] [format]",
	Short: "Export a debate to file",
	Long: `Export a debate to markdown, PDF, or JSON.

Examples:
  rhetor debates export 3f2a markdown
  rhetor debates export 3f2a pdf
  rhetor debates export 3f2a json -o debate.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		exporter, err := export.GetExporter(export.Format(strings.ToLower(args[1])))
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := loadDocument(ctx, a, args[0])
		if err != nil {
			return err
		}

		outputPath, _ := cmd.Flags().GetString("output")
		if outputPath == "" {
			outputPath = export.GenerateFilename(doc, exporter.FileExtension())
		}

		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		defer file.Close()

		if err := exporter.Export(doc, file); err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		fmt.Printf("Exported to: %s\n", outputPath)
		return nil
	},
}

var debatesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a debate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := findDebateByPrefix(ctx, a, args[0])
		if err != nil {
			return err
		}
		if err := a.Engine.Delete(ctx, id); err != nil {
			return err
		}

		fmt.Printf("Deleted debate: %s\n", id)
		return nil
	},
}

func init() {
	debatesListCmd.Flags().StringVarP(&listLearning, "learning", "l", "", "Only debates for this learning ID")
	debatesExportCmd.Flags().StringP("output", "o", "", "Output file path")

	debatesCmd.AddCommand(debatesListCmd)
	debatesCmd.AddCommand(debatesShowCmd)
	debatesCmd.AddCommand(debatesExportCmd)
	debatesCmd.AddCommand(debatesDeleteCmd)
}

// ============================================================================
// LEARNINGS COMMAND
// ============================================================================

var learningsCmd = &cobra.Command{
	Use:   "learnings",
	Short: "List study material",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		learnings := a.Learnings.List(ctx)
		if len(learnings) == 0 {
			fmt.Println("No learnings found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tFILES\tDEBATES")
		for _, l := range learnings {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n",
				shortID(l.ID),
				truncate(l.Title, 40),
				len(a.Learnings.Files(ctx, l.ID)),
				len(a.Engine.List(ctx, l.ID)),
			)
		}
		return w.Flush()
	},
}

// ============================================================================
// CATALOG COMMANDS
// ============================================================================

var opponentsCmd = &cobra.Command{
	Use:   "opponents",
	Short: "List available opponents",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tERA\tDESCRIPTION")
		for _, p := range persona.DefaultPersonas() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Era, p.Description)
		}
		w.Flush()
	},
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List debate formats",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTURN COUNTS\tDESCRIPTION")
		for _, f := range format.DefaultFormats() {
			counts := make([]string, len(f.TurnCounts))
			for i, n := range f.TurnCounts {
				counts[i] = fmt.Sprint(n)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.ID, f.Name, strings.Join(counts, ","), f.Description)
		}
		w.Flush()
	},
}

var checkHealth bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List AI providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		registry, err := appConfig.CreateRegistry(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		header := "NAME\tDISPLAY NAME\tCONFIGURED"
		if checkHealth {
			header += "\tHEALTH\tLATENCY"
		}
		fmt.Fprintln(w, header)
		for _, p := range registry.List() {
			configured := "no"
			if p.Available() {
				configured = "yes"
			}
			if !checkHealth {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name(), p.DisplayName(), configured)
				continue
			}
			status := provider.CheckHealth(ctx, p)
			health := "ok"
			if !status.Available {
				health = status.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name(), p.DisplayName(), configured, health, status.ResponseTime.Round(time.Millisecond))
		}
		return w.Flush()
	},
}

func init() {
	providersCmd.Flags().BoolVar(&checkHealth, "check", false, "Send a health-check prompt to each provider")
}

// ============================================================================
// CONFIG COMMAND
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		fmt.Printf("Config file: %s\n\n", path)

		fmt.Println("Current settings:")
		fmt.Printf("  Port: %d\n", appConfig.Server.Port)
		fmt.Printf("  Store: %s\n", appConfig.Store.Backend)
		fmt.Printf("  Default provider: %s\n", appConfig.Defaults.Provider)
		fmt.Printf("  Default opponent: %s\n", appConfig.Defaults.Opponent)
		fmt.Printf("  Default turns: %d\n", appConfig.Defaults.TurnCount)
		fmt.Printf("  Gemini key set: %t\n", appConfig.Gemini.APIKey != "")
		fmt.Printf("  Replicate token set: %t\n", appConfig.Speech.ReplicateToken != "")
		fmt.Printf("  Google TTS configured: %t\n", appConfig.Speech.Google.Credentials().Validate() == nil)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(config.GenerateExample()), 0600); err != nil {
			return err
		}

		fmt.Printf("Created config at: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// ============================================================================
// HELPERS
// ============================================================================

func findDebateByPrefix(ctx context.Context, a *app.App, prefix string) (string, error) {
	for _, d := range a.Engine.List(ctx, "") {
		if strings.HasPrefix(d.ID, prefix) {
			return d.ID, nil
		}
	}
	return "", fmt.Errorf("debate not found: %s", prefix)
}

func loadDocument(ctx context.Context, a *app.App, prefix string) (*export.Document, error) {
	id, err := findDebateByPrefix(ctx, a, prefix)
	if err != nil {
		return nil, err
	}
	s, err := a.Engine.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, _ := s.Summary()
	return &export.Document{
		Config:   s.Config(),
		Messages: s.Messages(),
		Summary:  summary,
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
