package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/quizzify/internal/chunk"
	"github.com/apresai/quizzify/internal/config"
	"github.com/apresai/quizzify/internal/embed"
	"github.com/apresai/quizzify/internal/ingest"
	"github.com/apresai/quizzify/internal/llm"
	"github.com/apresai/quizzify/internal/observability"
	"github.com/apresai/quizzify/internal/pipeline"
	"github.com/apresai/quizzify/internal/progress"
	"github.com/apresai/quizzify/internal/quiz"
	"github.com/apresai/quizzify/internal/vectorstore"
)

var Version = "dev"

// generateFlags holds the generate command's options after flags, config and
// the setup wizard have been applied.
type generateFlags struct {
	inputs        []string
	output        string
	topic         string
	numQuestions  int
	model         string
	failurePolicy string
	configPath    string
	verbose       bool
	tui           bool
}

var genFlags generateFlags

var rootCmd = &cobra.Command{
	Use:   "quizzify",
	Short: "Build multiple-choice quizzes from PDF documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		genFlags.tui = true
		return runGenerate(cmd, args)
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quizzify %s\n", Version)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a quiz from PDF documents, text files or web pages",
	RunE:  runGenerate,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.StringArrayVarP(&genFlags.inputs, "input", "i", nil, "Source document (PDF path, text file path, or URL); repeatable")
	f.StringVarP(&genFlags.output, "output", "o", "", "Output quiz JSON path")
	f.StringVarP(&genFlags.topic, "topic", "p", "", "Quiz topic (default \""+quiz.DefaultTopic+"\")")
	f.IntVarP(&genFlags.numQuestions, "num-questions", "n", 0, fmt.Sprintf("Number of questions, 1-%d (default from config, 5)", quiz.MaxQuestions))
	f.StringVarP(&genFlags.model, "model", "m", "", "Question generation model: "+strings.Join(llm.Names(), ", "))
	f.StringVar(&genFlags.failurePolicy, "failure-policy", "", "On an unreadable document: fail-fast or skip")
	f.BoolVarP(&genFlags.tui, "tui", "t", false, "Interactive setup wizard for generation options")
	rootCmd.PersistentFlags().StringVarP(&genFlags.configPath, "config", "c", "", "YAML config file (default $QUIZZIFY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&genFlags.verbose, "verbose", "v", false, "Enable detailed logging")
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// mergeConfig fills options not given on the command line from cfg.
func mergeConfig(f *generateFlags, cfg *config.Config) {
	if f.topic == "" {
		f.topic = cfg.Topic
	}
	if f.numQuestions == 0 {
		f.numQuestions = cfg.NumQuestions
	}
	if f.model == "" {
		f.model = cfg.Model
	}
	if f.failurePolicy == "" {
		f.failurePolicy = cfg.FailurePolicy
	}
}

func validateGenerate(f *generateFlags) (ingest.FailurePolicy, error) {
	if len(f.inputs) == 0 {
		return 0, fmt.Errorf("at least one --input (-i) is required")
	}
	if f.numQuestions < 1 || f.numQuestions > quiz.MaxQuestions {
		return 0, fmt.Errorf("invalid --num-questions %d: must be between 1 and %d", f.numQuestions, quiz.MaxQuestions)
	}
	valid := false
	for _, name := range llm.Names() {
		if name == f.model {
			valid = true
		}
	}
	if !valid {
		return 0, fmt.Errorf("invalid model %q: must be one of %s", f.model, strings.Join(llm.Names(), ", "))
	}
	return ingest.ParseFailurePolicy(f.failurePolicy)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f := &genFlags

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	mergeConfig(f, cfg)

	if f.tui {
		if err := runInteractiveSetup(f); err != nil {
			return err
		}
	}

	policy, err := validateGenerate(f)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(f.verbose, cfg.OutputDir)
	if err != nil {
		return err
	}
	defer closeLog()

	if observability.TracingEnabled() {
		tp, err := observability.InitTracer(ctx, "quizzify", Version, cfg.Env)
		if err != nil {
			logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	coll, closeColl, err := openCollection(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeColl()

	model, err := llm.New(ctx, f.model)
	if err != nil {
		return err
	}
	if c, ok := model.(io.Closer); ok {
		defer c.Close()
	}

	opts := pipeline.Options{
		Inputs:                 f.inputs,
		Topic:                  f.topic,
		NumQuestions:           f.numQuestions,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		FailurePolicy:          policy,
		TempDir:                cfg.TempDir,
		Output:                 f.output,
		OutputDir:              cfg.OutputDir,
		Index:                  coll,
		Model:                  model,
		Verbose:                f.verbose,
		Logger:                 logger,
	}

	// Wire up progress bar when not in verbose mode
	var bar *progress.BarRenderer
	if !f.verbose {
		bar = progress.NewBarRenderer(os.Stdout)
		opts.OnProgress = bar.Handle
	}

	res, err := pipeline.Run(ctx, opts)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range res.Skipped {
		fmt.Fprintf(out, "Skipped unreadable document: %s\n", name)
	}
	// The progress bar reports these itself.
	if f.verbose {
		if res.Quiz.Shortfall() {
			fmt.Fprintf(out, "Only %d of %d questions could be generated.\n", len(res.Quiz.Questions), res.Quiz.Requested)
		}
		fmt.Fprintf(out, "Quiz saved to %s\n", res.OutputFile)
	}
	return nil
}

// openCollection connects to the configured pgvector collection.
func openCollection(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*vectorstore.Collection, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required (pgvector database for the document collection)")
	}
	store, err := vectorstore.OpenPG(ctx, cfg.DatabaseURL, cfg.VectorTable, cfg.Collection, embed.Dimensions)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embed.NewGemini(ctx, cfg.EmbeddingModel, logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	coll := vectorstore.NewCollection(store, embedder, chunk.NewSplitter(), logger)
	return coll, func() {
		embedder.Close()
		store.Close()
	}, nil
}

// newLogger logs to stderr in verbose mode and to a log file in the output
// directory otherwise, so log lines never interleave with the progress bar.
func newLogger(verbose bool, outputDir string) (*slog.Logger, func(), error) {
	if verbose {
		return observability.InitLogger(os.Stderr, true), func() {}, nil
	}
	if outputDir == "" {
		return observability.InitLogger(io.Discard, false), func() {}, nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}
	lf, err := os.OpenFile(filepath.Join(outputDir, "quizzify.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return observability.InitLogger(lf, false), func() { lf.Close() }, nil
}
