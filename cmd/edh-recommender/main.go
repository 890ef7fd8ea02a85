package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ramonehamilton/EDH-Recommender/internal/archidekt"
	"github.com/ramonehamilton/EDH-Recommender/internal/charts"
	"github.com/ramonehamilton/EDH-Recommender/internal/config"
	"github.com/ramonehamilton/EDH-Recommender/internal/dataset"
	"github.com/ramonehamilton/EDH-Recommender/internal/engine"
	"github.com/ramonehamilton/EDH-Recommender/internal/validation"
	"github.com/ramonehamilton/EDH-Recommender/internal/version"
	"github.com/ramonehamilton/EDH-Recommender/internal/watcher"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "recommend":
		runRecommendCommand()
	case "validate":
		runValidateCommand()
	case "build-snapshot":
		runBuildSnapshotCommand()
	case "fetch":
		runFetchCommand()
	case "watch":
		runWatchCommand()
	case "version":
		fmt.Println(version.GetVersion())
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("EDH Recommender")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Usage: edh-recommender <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  recommend       - Generate card recommendations for a deck")
	fmt.Println("  validate        - Run the hold-out validation harness")
	fmt.Println("  build-snapshot  - Build a compact snapshot from raw deck exports")
	fmt.Println("  fetch           - Download Commander decks from Archidekt")
	fmt.Println("  watch           - Rebuild the engine whenever the snapshot changes")
	fmt.Println("  version         - Print the application version")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  edh-recommender fetch --limit 500")
	fmt.Println("  edh-recommender build-snapshot")
	fmt.Println("  edh-recommender recommend --deck-id 12345 --top 10")
	fmt.Println("  edh-recommender recommend \"Sol Ring\" \"Cultivate\" \"Harmonize\"")
	fmt.Println("  edh-recommender validate --precision-k 5,10,20 --report report.html")
	fmt.Println("  edh-recommender watch --deck-id 12345")
	fmt.Println()
	fmt.Println("For command-specific help:")
	fmt.Println("  edh-recommender <command> --help")
	fmt.Println()
}

// newLogger builds the application logger writing to stderr so command
// output on stdout stays clean.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads the configuration file and validates it.
func loadConfig(path string) *config.Config {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func runRecommendCommand() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: ~/.edh-recommender/config.toml)")
	compactPath := fs.String("compact-path", "", "Compact snapshot path (overrides config)")
	dataDir := fs.String("data-dir", "", "Raw deck export directory (overrides config)")
	deckID := fs.String("deck-id", "", "Deck identifier to use as the seed")
	top := fs.Int("top", 10, "Number of ranked candidates to display")
	similarityCache := fs.String("similarity-cache", "", "Similarity cache path (overrides config)")
	refreshCache := fs.Bool("refresh-cache", false, "Rebuild similarity cache even if present")
	allowUnresolved := fs.Bool("allow-unresolved", false, "Skip card identifiers that cannot be resolved")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Println("Usage: edh-recommender recommend [options] [card identifiers...]")
		fmt.Println()
		fmt.Println("Seed the recommendation from an existing deck (--deck-id) or from a")
		fmt.Println("list of card identifiers (oracle ids, uids, or names).")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	if *deckID == "" && fs.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: either --deck-id or card identifiers are required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	applyDatasetOverrides(cfg, *compactPath, *dataDir, *similarityCache)
	if *top > cfg.DeckBuilder.RankedListSize {
		cfg.DeckBuilder.RankedListSize = *top
	}

	logger := newLogger(*debug || cfg.App.DebugMode)
	ec := cfg.EngineConfig(logger)
	ec.RefreshCache = *refreshCache

	eng, err := engine.New(context.Background(), ec)
	if err != nil {
		log.Fatalf("Failed to build recommendation engine: %v", err)
	}

	var result *engine.RecommendationResult
	if *deckID != "" {
		result, err = eng.RecommendForDeck(*deckID, *top)
		if errors.Is(err, engine.ErrDeckNotFound) {
			fmt.Printf("Deck %s not found in dataset\n", *deckID)
			os.Exit(1)
		}
	} else {
		result, err = eng.Recommend(fs.Args(), *top, *allowUnresolved)
		var unresolved *engine.UnresolvedCardsError
		if errors.As(err, &unresolved) {
			fmt.Printf("Could not resolve: %s\n", strings.Join(unresolved.Identifiers, ", "))
			fmt.Println("Use --allow-unresolved to skip unknown identifiers.")
			os.Exit(1)
		}
	}
	if err != nil {
		log.Fatalf("Recommendation failed: %v", err)
	}

	printRecommendation(eng, result)
}

func printRecommendation(eng *engine.Engine, result *engine.RecommendationResult) {
	if len(result.Unresolved) > 0 {
		fmt.Println("Skipped unresolved identifiers:", strings.Join(result.Unresolved, ", "))
		fmt.Println()
	}

	if len(result.Ranked) == 0 {
		fmt.Println("No candidate recommendations available for this deck.")
	} else {
		fmt.Println("Top recommendations:")
		for i, rc := range result.Ranked {
			fmt.Printf("%d. %s (%s) | score=%.3f\n", i+1, cardName(eng, rc.Score.OracleID), rc.Score.OracleID, rc.Score.Total)
			fmt.Printf("   %s\n", rc.Reason.Summary)
		}
	}

	rec := result.Deck
	if len(rec.Additions) > 0 {
		fmt.Println()
		fmt.Println("Additions suggested:", strings.Join(rec.Additions, ", "))
	}
	if len(rec.Swaps) > 0 {
		fmt.Println()
		fmt.Println("Suggested swaps:")
		for _, swap := range rec.Swaps {
			fmt.Printf("- Replace %s (%s) with %s (%s): %s\n",
				cardName(eng, swap.Outgoing), swap.Outgoing,
				cardName(eng, swap.Incoming), swap.Incoming,
				swap.Reason.Summary)
		}
	}
	if len(rec.Notes) > 0 {
		fmt.Println()
		fmt.Println("Notes:")
		for _, note := range rec.Notes {
			fmt.Printf("- %s\n", note)
		}
	}
}

func cardName(eng *engine.Engine, oracleID string) string {
	if card, ok := eng.CardByOracleID(oracleID); ok && card.Name != "" {
		return card.Name
	}
	return oracleID
}

func runValidateCommand() {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: ~/.edh-recommender/config.toml)")
	compactPath := fs.String("compact-path", "", "Compact snapshot path (overrides config)")
	dataDir := fs.String("data-dir", "", "Raw deck export directory (overrides config)")
	holdout := fs.Float64("holdout-fraction", -1, "Fraction of decks withheld (default from config)")
	seedSize := fs.Int("seed-size", -1, "Cards revealed per holdout deck (default from config)")
	precisionK := fs.String("precision-k", "", "Comma-separated precision cutoffs (default from config)")
	similarityCache := fs.String("similarity-cache", "", "Similarity cache path (overrides config)")
	refreshCache := fs.Bool("refresh-cache", false, "Rebuild similarity cache even if present")
	report := fs.String("report", "", "Write an HTML chart of the metrics to this path")
	openReport := fs.Bool("open", false, "Open the report in a browser after writing it")
	debug := fs.Bool("debug", false, "Enable debug logging")

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	applyDatasetOverrides(cfg, *compactPath, *dataDir, *similarityCache)

	logger := newLogger(*debug || cfg.App.DebugMode)
	ec := cfg.EngineConfig(logger)
	ec.RefreshCache = *refreshCache

	eng, err := engine.New(context.Background(), ec)
	if err != nil {
		log.Fatalf("Failed to build recommendation engine: %v", err)
	}

	vcfg := cfg.ValidationOptions()
	if *holdout >= 0 {
		vcfg.HoldoutFraction = *holdout
	}
	if *seedSize >= 0 {
		vcfg.SeedSize = *seedSize
	}
	if *precisionK != "" {
		vcfg.PrecisionK = parseCutoffs(*precisionK)
	}

	result, err := eng.Validate(vcfg)
	if err != nil {
		log.Fatalf("Validation failed: %v", err)
	}

	fmt.Println("Validation metrics:")
	for _, k := range vcfg.PrecisionK {
		fmt.Printf("@%d: precision=%.3f, recall=%.3f\n", k, result.Precision[k], result.Recall[k])
	}
	fmt.Printf("Evaluated decks: %d\n", result.Metadata.EvaluatedDecks)

	if *report != "" {
		if err := validation.WriteReport(result, *report); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		fmt.Println()
		fmt.Printf("Report written to %s\n", *report)
		if *openReport {
			if err := charts.OpenInBrowser(*report); err != nil {
				log.Printf("Could not open browser: %v", err)
			}
		}
	}
}

func parseCutoffs(value string) []int {
	parts := strings.Split(value, ",")
	cutoffs := make([]int, 0, len(parts))
	for _, part := range parts {
		k, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || k <= 0 {
			log.Fatalf("Invalid precision cutoff %q", part)
		}
		cutoffs = append(cutoffs, k)
	}
	return cutoffs
}

func runBuildSnapshotCommand() {
	fs := flag.NewFlagSet("build-snapshot", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: ~/.edh-recommender/config.toml)")
	dataDir := fs.String("data-dir", "", "Raw deck export directory (overrides config)")
	out := fs.String("out", "", "Snapshot output path (overrides config)")
	debug := fs.Bool("debug", false, "Enable debug logging")

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *dataDir != "" {
		cfg.Dataset.DataDir = *dataDir
	}
	if *out != "" {
		cfg.Dataset.CompactPath = *out
	}
	if err := cfg.ResolvePaths(); err != nil {
		log.Fatalf("Error resolving paths: %v", err)
	}

	logger := newLogger(*debug || cfg.App.DebugMode)

	ds, err := dataset.NewLoader(logger).LoadDir(cfg.Dataset.DataDir)
	if err != nil {
		log.Fatalf("Failed to load deck exports: %v", err)
	}
	if len(ds.Decks) == 0 {
		log.Fatalf("No decks found in %s", cfg.Dataset.DataDir)
	}

	snapshotID, err := dataset.WriteSnapshot(ds, cfg.Dataset.CompactPath)
	if err != nil {
		log.Fatalf("Failed to write snapshot: %v", err)
	}

	fmt.Printf("Snapshot %s written to %s\n", snapshotID, cfg.Dataset.CompactPath)
	fmt.Printf("Decks: %d, unique cards: %d, commanders: %d\n",
		len(ds.Decks), len(ds.Cards), len(ds.CommanderProfiles))
}

func runFetchCommand() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: ~/.edh-recommender/config.toml)")
	out := fs.String("out", "", "Export directory (overrides config)")
	limit := fs.Int("limit", 0, "Number of recent decks to download (default from config)")
	ids := fs.String("ids", "", "Comma-separated deck ids to download instead of recent decks")
	debug := fs.Bool("debug", false, "Enable debug logging")

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *out != "" {
		cfg.Fetch.OutputDir = *out
	}
	if *limit > 0 {
		cfg.Fetch.Limit = *limit
	}
	if err := cfg.ResolvePaths(); err != nil {
		log.Fatalf("Error resolving paths: %v", err)
	}

	logger := newLogger(*debug || cfg.App.DebugMode)
	fetcher := archidekt.NewFetcher(archidekt.NewClient(), cfg.Fetch.OutputDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var paths []string
	var err error
	if *ids != "" {
		deckIDs := parseDeckIDs(*ids)
		fmt.Printf("Fetching %d decks into %s...\n", len(deckIDs), cfg.Fetch.OutputDir)
		paths, err = fetcher.FetchDecks(ctx, deckIDs)
	} else {
		fmt.Printf("Fetching up to %d recent Commander decks into %s...\n", cfg.Fetch.Limit, cfg.Fetch.OutputDir)
		paths, err = fetcher.FetchRecent(ctx, cfg.Fetch.Limit)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Fetch failed: %v", err)
	}

	fmt.Printf("Fetched %d decks.\n", len(paths))
	if len(paths) > 0 {
		fmt.Println("Run 'edh-recommender build-snapshot' to fold them into the snapshot.")
	}
}

func parseDeckIDs(value string) []int64 {
	parts := strings.Split(value, ",")
	deckIDs := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			log.Fatalf("Invalid deck id %q", part)
		}
		deckIDs = append(deckIDs, id)
	}
	return deckIDs
}

func runWatchCommand() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: ~/.edh-recommender/config.toml)")
	compactPath := fs.String("compact-path", "", "Compact snapshot path (overrides config)")
	deckID := fs.String("deck-id", "", "Reprint recommendations for this deck after each reload")
	top := fs.Int("top", 10, "Number of ranked candidates to display")
	allowUnresolved := fs.Bool("allow-unresolved", false, "Skip card identifiers that cannot be resolved")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Println("Usage: edh-recommender watch [options] [card identifiers...]")
		fmt.Println()
		fmt.Println("Keeps the engine loaded and rebuilds it whenever the snapshot file")
		fmt.Println("changes. With --deck-id or card identifiers, recommendations are")
		fmt.Println("printed on startup and again after every reload.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	applyDatasetOverrides(cfg, *compactPath, "", "")
	if *top > cfg.DeckBuilder.RankedListSize {
		cfg.DeckBuilder.RankedListSize = *top
	}

	logger := newLogger(*debug || cfg.App.DebugMode)
	ec := cfg.EngineConfig(logger)

	eng, err := engine.New(context.Background(), ec)
	if err != nil {
		log.Fatalf("Failed to build recommendation engine: %v", err)
	}

	handle := watcher.NewHandle(eng)
	identifiers := fs.Args()

	show := func(e *engine.Engine) {
		if *deckID == "" && len(identifiers) == 0 {
			return
		}
		var result *engine.RecommendationResult
		var err error
		if *deckID != "" {
			result, err = e.RecommendForDeck(*deckID, *top)
		} else {
			result, err = e.Recommend(identifiers, *top, *allowUnresolved)
		}
		if err != nil {
			fmt.Printf("Recommendation failed: %v\n", err)
			return
		}
		fmt.Println()
		fmt.Printf("Snapshot %s:\n", e.SnapshotID())
		printRecommendation(e, result)
	}

	show(handle.Engine())

	reload := handle.Reloader(ec)
	w, err := watcher.New(watcher.Config{
		Path:   cfg.Dataset.CompactPath,
		Logger: logger,
		Reload: func(ctx context.Context) error {
			if err := reload(ctx); err != nil {
				return err
			}
			show(handle.Engine())
			return nil
		},
	})
	if err != nil {
		log.Fatalf("Failed to create watcher: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println()
	fmt.Println("Watching for snapshot changes. Press Ctrl+C to stop.")

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Watcher failed: %v", err)
	}

	fmt.Println()
	fmt.Println("Stopped.")
}

// applyDatasetOverrides folds command-line dataset flags into the config and
// resolves any paths still empty.
func applyDatasetOverrides(cfg *config.Config, compactPath, dataDir, similarityCache string) {
	if compactPath != "" {
		cfg.Dataset.CompactPath = compactPath
	}
	if dataDir != "" {
		cfg.Dataset.DataDir = dataDir
	}
	if similarityCache != "" {
		cfg.Similarity.CachePath = similarityCache
	}
	if err := cfg.ResolvePaths(); err != nil {
		log.Fatalf("Error resolving paths: %v", err)
	}
}
