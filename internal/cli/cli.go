package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"script-translator/internal/batch"
	"script-translator/internal/cache"
	"script-translator/internal/config"
	"script-translator/internal/filewalker"
	"script-translator/internal/history"
	"script-translator/internal/memory"
	"script-translator/internal/obfuscate"
	"script-translator/internal/parser"
	"script-translator/internal/terminology"
	"script-translator/internal/translation"
	"script-translator/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd := &cobra.Command{
		Use:   "script-translator",
		Short: "Extract and translate Ren'Py and RPG Maker MZ game scripts",
		Long:  "Extracts dialogue from Ren'Py scripts and RPG Maker MZ data files, batch-translates it through the Gemini API, and reconstructs the originals with translations in place.",
	}

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(translateCmd())
	rootCmd.AddCommand(glossaryCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <input-dir>",
		Short: "Parse script files and export the extracted entries as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir, _ := cmd.Flags().GetString("output")
			return runExtract(args[0], outputDir)
		},
	}
	cmd.Flags().String("output", "extracted", "Output directory for extracted entry files")
	return cmd
}

func translateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <input-dir> <output-dir>",
		Short: "Translate script files and write reconstructed output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tlFile, _ := cmd.Flags().GetBool("tl-file")
			return runTranslate(args[0], args[1], tlFile)
		},
	}
	cmd.Flags().Bool("tl-file", false, "Also write Ren'Py old/new translation files alongside rewritten scripts")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past translation operations",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runHistoryList(limit)
		},
	}
	listCmd.Flags().Int("limit", 20, "Maximum records to show")
	cmd.AddCommand(listCmd)
	return cmd
}

func glossaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "Manage do-not-translate keywords, proper nouns, and contextual rules",
	}

	addCmd := &cobra.Command{
		Use:   "add <keyword|noun|rule> <value> [translation]",
		Short: "Add an item (nouns take a source and a translation)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTerminologyStore(func(ctx context.Context, store *terminology.PGStore) error {
				switch args[0] {
				case "keyword":
					return store.AddKeyword(ctx, args[1])
				case "noun":
					if len(args) < 3 {
						return fmt.Errorf("noun requires a source and a translation")
					}
					return store.AddProperNoun(ctx, args[1], args[2])
				case "rule":
					return store.AddRule(ctx, args[1])
				default:
					return fmt.Errorf("unknown glossary kind %q", args[0])
				}
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the configured terminology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTerminologyStore(func(ctx context.Context, store *terminology.PGStore) error {
				set, err := store.Load(ctx)
				if err != nil {
					return err
				}
				printTerminology(set)
				return nil
			})
		},
	}

	toggle := func(use string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <keyword|noun|rule> <id>",
			Short: use + " an item without deleting it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", args[1])
				}
				return withTerminologyStore(func(ctx context.Context, store *terminology.PGStore) error {
					return store.SetEnabled(ctx, args[0], id, enabled)
				})
			},
		}
	}

	removeCmd := &cobra.Command{
		Use:   "remove <keyword|noun|rule> <id>",
		Short: "Delete an item permanently",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}
			return withTerminologyStore(func(ctx context.Context, store *terminology.PGStore) error {
				return store.Remove(ctx, args[0], id)
			})
		},
	}

	cmd.AddCommand(addCmd, listCmd, toggle("enable", true), toggle("disable", false), removeCmd)
	return cmd
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Warn().Msg("Received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

func connectDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")
	return pool, nil
}

func withTerminologyStore(fn func(ctx context.Context, store *terminology.PGStore) error) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()
	pool, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := terminology.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	return fn(ctx, store)
}

func printTerminology(set terminology.Set) {
	flag := func(enabled bool) string {
		if enabled {
			return " "
		}
		return "off"
	}
	fmt.Println("Keywords (do not translate):")
	for _, k := range set.Keywords {
		fmt.Printf("  [%3d] %-3s %s\n", k.ID, flag(k.Enabled), k.Value)
	}
	fmt.Println("Proper nouns (always translate as):")
	for _, p := range set.ProperNouns {
		fmt.Printf("  [%3d] %-3s %s → %s\n", p.ID, flag(p.Enabled), p.Source, p.Translation)
	}
	fmt.Println("Contextual rules:")
	for _, r := range set.Rules {
		fmt.Printf("  [%3d] %-3s %s\n", r.ID, flag(r.Enabled), r.Text)
	}
}

// parsedFile pairs a walked entry with its parse result.
type parsedFile struct {
	entry filewalker.FileEntry
	file  *parser.File
}

// loadFiles walks the input directory, applies every MapInfos document
// to the shared side table, then parses the remaining files with a
// worker pool. Files that fail to parse are reported and skipped; they
// never block the rest of the batch.
func loadFiles(ctx context.Context, cfg *config.Config, inputDir string, mapInfos *parser.MapInfoTable) ([]parsedFile, error) {
	w := filewalker.NewWalker()
	entries, err := w.Walk(inputDir)
	if err != nil {
		return nil, fmt.Errorf("walk input directory: %w", err)
	}

	rpgParser := parser.NewRPGMakerParser(mapInfos)
	renpyParser := parser.NewRenpyParser()

	// Side table first, so per-map files resolve editor names.
	var toParse []filewalker.FileEntry
	for _, entry := range entries {
		if entry.IsMapInfos {
			data, err := os.ReadFile(entry.Path)
			if err != nil {
				log.Error().Err(err).Str("file", entry.Name).Msg("Read MapInfos failed")
				continue
			}
			if err := mapInfos.Merge(data); err != nil {
				log.Error().Err(err).Str("file", entry.Name).Msg("Parse MapInfos failed")
				continue
			}
			log.Info().Int("maps", mapInfos.Len()).Msg("Loaded map name table")
			continue
		}
		toParse = append(toParse, entry)
	}

	pool := worker.NewPool[filewalker.FileEntry, *parser.File](cfg.WorkerCount,
		func(ctx context.Context, entry filewalker.FileEntry) (*parser.File, error) {
			data, err := os.ReadFile(entry.Path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", entry.Path, err)
			}
			switch entry.Dialect {
			case parser.DialectRPGMaker:
				return rpgParser.Parse(data, entry.Name)
			default:
				file := renpyParser.Parse(string(data))
				file.Name = entry.Name
				return file, nil
			}
		},
	)

	results := pool.Execute(ctx, toParse)

	var parsed []parsedFile
	for _, task := range results {
		if task.Err != nil {
			log.Error().Err(task.Err).Str("file", task.Input.Name).Msg("Parse failed, file skipped")
			continue
		}
		if task.Result == nil {
			continue
		}
		log.Info().Str("file", task.Input.Name).Int("entries", len(task.Result.Entries)).Msg("Extracted entries")
		parsed = append(parsed, parsedFile{entry: task.Input, file: task.Result})
	}

	return parsed, nil
}

// runExtract handles the `extract` command.
func runExtract(inputDir, outputDir string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()
	mapInfos := parser.NewMapInfoTable()

	parsed, err := loadFiles(ctx, cfg, inputDir, mapInfos)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	total := 0
	for _, pf := range parsed {
		data, err := parser.ExportEntries(pf.file)
		if err != nil {
			log.Error().Err(err).Str("file", pf.file.Name).Msg("Export failed")
			continue
		}
		outPath := filepath.Join(outputDir, exportName(pf.file.Name))
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			log.Error().Err(err).Str("path", outPath).Msg("Write export failed")
			continue
		}
		total += len(pf.file.Entries)
	}

	log.Info().Int("files", len(parsed)).Int("entries", total).Str("output", outputDir).Msg("Extraction complete")
	return nil
}

// runTranslate handles the `translate` command.
func runTranslate(inputDir, outputDir string, tlFile bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not configured")
	}

	pool, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	termStore := terminology.NewPGStore(pool)
	translationCache := cache.New(pool)
	historyStore := history.NewStore(pool)
	for _, ensure := range []func(context.Context) error{
		termStore.EnsureSchema, translationCache.EnsureSchema, historyStore.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			return err
		}
	}

	terms, err := termStore.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load terminology, continuing without it")
	}

	if err := translationCache.Preload(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to preload cache")
	}

	safety := translation.SafetyConfig{Enabled: cfg.SafetyFiltersEnabled}
	client := translation.NewGeminiClient(cfg.GeminiAPIKey, cfg.TranslationModel, safety)
	prompts := translation.NewPromptBuilder()

	var opts []batch.Option
	var transform *obfuscate.Transform
	if !cfg.SafetyFiltersEnabled {
		transform = obfuscate.NewTransform()
		opts = append(opts, batch.WithTransform(transform))
	}

	var tm *memory.TranslationMemory
	if cfg.MemoryEnabled {
		embeddings := memory.NewEmbeddingClient(cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingBaseURL, cfg.EmbeddingDimensions)
		tm = memory.New(pool, embeddings, cfg.EmbeddingDimensions)
		if err := tm.EnsureSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Translation memory unavailable")
			tm = nil
		} else {
			opts = append(opts, batch.WithHints(tm))
		}
	}

	protocol := batch.New(client, prompts, cfg.ChunkSize, cfg.MaxConcurrentAPICalls, opts...)

	mapInfos := parser.NewMapInfoTable()
	parsed, err := loadFiles(ctx, cfg, inputDir, mapInfos)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, pf := range parsed {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		translateFile(ctx, pf, protocol, transform, terms, translationCache, historyStore, tm, cfg)
		writeOutputs(pf, inputDir, outputDir, tlFile)
	}

	log.Info().Int("files", len(parsed)).Str("output", outputDir).Msg("Translation pipeline complete")
	return nil
}

// translateFile runs the batch protocol over one file's pending entries
// and emits exactly one summary notification for the operation.
func translateFile(
	ctx context.Context,
	pf parsedFile,
	protocol *batch.Protocol,
	transform *obfuscate.Transform,
	terms terminology.Set,
	translationCache *cache.TranslationCache,
	historyStore *history.Store,
	tm *memory.TranslationMemory,
	cfg *config.Config,
) {
	file := pf.file
	file.Status = parser.FileProcessing
	defer func() { file.Status = parser.FileDone }()

	// Cache pass: identical lines translated before skip the service.
	cached := 0
	for _, e := range file.Pending() {
		if translated, ok := translationCache.Get(ctx, e.OriginalText); ok {
			e.TranslatedText = translated
			e.Status = parser.StatusDone
			cached++
		}
	}
	if cached > 0 {
		log.Info().Str("file", file.Name).Int("cached", cached).Msg("Filled from cache")
	}

	pending := file.Pending()
	if len(pending) == 0 {
		return
	}

	spec := translation.PromptSpec{
		SourceLang:  cfg.SourceLang,
		TargetLang:  cfg.TargetLang,
		Terminology: terms,
	}
	switch file.Dialect {
	case parser.DialectRenpy:
		spec.Format = translation.FormatRenpy
		spec.SpeakerTagged = true
	case parser.DialectRPGMaker:
		spec.Format = translation.FormatRPGMaker
	}
	if transform != nil {
		spec.DecodeKey = transform.DecodeInstruction()
	}

	summary := protocol.Run(ctx, pending, spec)

	for _, e := range pending {
		if e.Status != parser.StatusDone {
			continue
		}
		if err := translationCache.Set(ctx, e.OriginalText, e.TranslatedText); err != nil {
			log.Warn().Err(err).Msg("Failed to cache translation")
		}
		if tm != nil {
			if err := tm.Record(ctx, e.OriginalText, e.TranslatedText, e.Context); err != nil {
				log.Warn().Err(err).Msg("Failed to record translation memory")
			}
		}
	}

	message := fmt.Sprintf("translated %d of %d entries", summary.Done, summary.Requested)
	if len(summary.Errors) > 0 {
		message = fmt.Sprintf("%s (%s)", message, describeFailure(summary.Errors[0]))
		log.Error().
			Str("file", file.Name).
			Int("done", summary.Done).
			Int("failed", summary.Failed).
			Str("reason", describeFailure(summary.Errors[0])).
			Msg("Translation finished with errors")
	} else {
		log.Info().
			Str("file", file.Name).
			Int("done", summary.Done).
			Int("failed", summary.Failed).
			Msg("Translation finished")
	}

	if err := historyStore.Add(ctx, history.Record{
		FileName:  file.Name,
		Dialect:   string(file.Dialect),
		Requested: summary.Requested,
		Done:      summary.Done,
		Failed:    summary.Failed,
		Message:   message,
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to record history")
	}
}

// describeFailure maps classified service errors to short user-facing
// reasons; everything else surfaces as a generic service error.
func describeFailure(err error) string {
	switch {
	case errors.Is(err, translation.ErrInvalidKey):
		return "API key is not valid"
	case errors.Is(err, translation.ErrQuotaExceeded):
		return "API quota exceeded"
	case errors.Is(err, translation.ErrSafetyBlocked):
		return "content blocked by safety filter"
	case errors.Is(err, translation.ErrTruncated):
		return "response truncated, try a smaller chunk size"
	case errors.Is(err, translation.ErrEmptyResponse):
		return "model returned no text"
	default:
		return "translation service error"
	}
}

// writeOutputs writes the reconstructed or exported form of one file.
// Ren'Py files are rewritten in place (and optionally as old/new
// translation files); RPG Maker files are exported as JSON entry dumps.
func writeOutputs(pf parsedFile, inputDir, outputDir string, tlFile bool) {
	inputAbs, _ := filepath.Abs(inputDir)
	outputAbs, _ := filepath.Abs(outputDir)

	relPath, err := filepath.Rel(inputAbs, pf.entry.Path)
	if err != nil {
		relPath = pf.entry.Name
	}

	switch pf.file.Dialect {
	case parser.DialectRenpy:
		outPath := filepath.Join(outputAbs, relPath)
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			log.Error().Err(err).Str("path", outPath).Msg("Create output directory failed")
			return
		}
		if err := os.WriteFile(outPath, []byte(parser.RewriteScript(pf.file)), 0644); err != nil {
			log.Error().Err(err).Str("path", outPath).Msg("Write rewritten script failed")
			return
		}
		if tlFile {
			tlPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".tl.rpy"
			if err := os.WriteFile(tlPath, []byte(parser.TranslationFile(pf.file)), 0644); err != nil {
				log.Error().Err(err).Str("path", tlPath).Msg("Write translation file failed")
			}
		}
		log.Info().Str("file", pf.file.Name).Str("output", outPath).Msg("Wrote rewritten script")

	case parser.DialectRPGMaker:
		data, err := parser.ExportEntries(pf.file)
		if err != nil {
			log.Error().Err(err).Str("file", pf.file.Name).Msg("Export failed")
			return
		}
		outPath := filepath.Join(outputAbs, filepath.Dir(relPath), exportName(pf.file.Name))
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			log.Error().Err(err).Str("path", outPath).Msg("Create output directory failed")
			return
		}
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			log.Error().Err(err).Str("path", outPath).Msg("Write export failed")
			return
		}
		log.Info().Str("file", pf.file.Name).Str("output", outPath).Msg("Wrote entry export")
	}
}

func exportName(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return base + "_extracted.json"
}

// runHistoryList handles `history list`.
func runHistoryList(limit int) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()
	pool, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := history.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	records, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No operations recorded yet.")
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %-8s %-30s %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Dialect, r.FileName, r.Message)
	}
	return nil
}
