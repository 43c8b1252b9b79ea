package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dhruvbajaj/finsentry/internal/config"
	"github.com/dhruvbajaj/finsentry/internal/domain"
	"github.com/dhruvbajaj/finsentry/internal/logger"
	"github.com/dhruvbajaj/finsentry/internal/normalize"
	"github.com/dhruvbajaj/finsentry/internal/pipeline"
)

func main() {
	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runSingle(log)
	case "batch":
		runBatch(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("FinSentry CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  analyze <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Analyze a single transaction from a JSON file")
	fmt.Println("  batch     Analyze a batch of transactions from a JSON file")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'analyze <command> -h' for more information on a command.")
}

func runSingle(log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	txnPath := fs.String("txn", "", "Path to JSON file with the raw transaction")
	historyPath := fs.String("history", "", "Path to JSON file with transaction history")
	vendorsPath := fs.String("vendors", "", "Path to JSON file with vendor profiles")
	balance := fs.Float64("balance", 0, "Current account balance")
	source := fs.String("source", "", "Input source hint (json, csv, pdf, email, ocr)")
	fs.Parse(os.Args[2:])

	if *txnPath == "" {
		log.Fatal().Msg("Error: -txn is required")
	}

	raws, err := rawsFromFile(*txnPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read transaction")
	}
	if len(raws) != 1 {
		log.Fatal().Int("count", len(raws)).Msg("Expected exactly one transaction, use batch for multiple")
	}

	history, vendors, err := loadContext(*historyPath, *vendorsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load analysis context")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	regime, err := config.RegimeFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load tax configuration")
	}

	p := pipeline.New(log, regime)
	report := p.Analyze(ctx, raws[0], normalize.Source(*source), history, vendors, *balance)

	printJSON(log, report)
}

func runBatch(log zerolog.Logger) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	txnsPath := fs.String("txns", "", "Path to JSON file with an array of raw transactions")
	historyPath := fs.String("history", "", "Path to JSON file with transaction history")
	vendorsPath := fs.String("vendors", "", "Path to JSON file with vendor profiles")
	balance := fs.Float64("balance", 0, "Current account balance")
	source := fs.String("source", "", "Input source hint (json, csv, pdf, email, ocr)")
	fs.Parse(os.Args[2:])

	if *txnsPath == "" {
		log.Fatal().Msg("Error: -txns is required")
	}

	raws, err := rawsFromFile(*txnsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read transactions")
	}

	history, vendors, err := loadContext(*historyPath, *vendorsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load analysis context")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	regime, err := config.RegimeFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load tax configuration")
	}

	p := pipeline.New(log, regime)
	result, err := p.AnalyzeBatch(ctx, raws, normalize.Source(*source), history, vendors, *balance)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch analysis failed")
	}

	printJSON(log, result)
}

// rawsFromFile reads a JSON file holding either one raw transaction or an
// array of them, and converts each element to a pipeline input.
func rawsFromFile(path string) ([]normalize.Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rawsFromFile: reading %s: %w", path, err)
	}

	var many []json.RawMessage
	if err := json.Unmarshal(data, &many); err == nil {
		raws := make([]normalize.Raw, 0, len(many))
		for i, m := range many {
			raw, err := normalize.FromJSON(m)
			if err != nil {
				return nil, fmt.Errorf("rawsFromFile: entry %d: %w", i, err)
			}
			raws = append(raws, raw)
		}
		return raws, nil
	}

	raw, err := normalize.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("rawsFromFile: %w", err)
	}
	return []normalize.Raw{raw}, nil
}

func loadContext(historyPath, vendorsPath string) ([]domain.HistoryEntry, map[string]domain.VendorProfile, error) {
	var history []domain.HistoryEntry
	if historyPath != "" {
		data, err := os.ReadFile(historyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loadContext: reading %s: %w", historyPath, err)
		}
		if err := json.Unmarshal(data, &history); err != nil {
			return nil, nil, fmt.Errorf("loadContext: parsing %s: %w", historyPath, err)
		}
	}

	vendors := map[string]domain.VendorProfile{}
	if vendorsPath != "" {
		data, err := os.ReadFile(vendorsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loadContext: reading %s: %w", vendorsPath, err)
		}
		if err := json.Unmarshal(data, &vendors); err != nil {
			return nil, nil, fmt.Errorf("loadContext: parsing %s: %w", vendorsPath, err)
		}
	}

	return history, vendors, nil
}

func printJSON(log zerolog.Logger, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode output")
	}
	fmt.Println(string(out))
}
