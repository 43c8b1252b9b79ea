package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dhruvbajaj/finsentry/internal/config"
	"github.com/dhruvbajaj/finsentry/internal/jobs"
	"github.com/dhruvbajaj/finsentry/internal/jobs/inmemory"
	"github.com/dhruvbajaj/finsentry/internal/logger"
	"github.com/dhruvbajaj/finsentry/internal/normalize"
	"github.com/dhruvbajaj/finsentry/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	jobsPath := flag.String("jobs", "", "Optional path to a JSON file with jobs to enqueue at startup")
	flag.Parse()

	regime, err := config.RegimeFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load tax configuration")
	}
	workerCfg := config.WorkerFromEnv()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(workerCfg.QueueBuffer, workerCfg.Workers, jobStore)

	log.Info().
		Int("workers", workerCfg.Workers).
		Int("queue_buffer", workerCfg.QueueBuffer).
		Msg("Starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	// One pipeline per handler invocation: the fraud scorer and payment
	// recommender carry per-run state.
	handler := func(ctx context.Context, job jobs.Job) error {
		batchJob, ok := job.(*jobs.AnalyzeBatchJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", batchJob.JobID).
			Int("transactions", len(batchJob.RawInputs)).
			Msg("Processing analysis job")

		raws := make([]normalize.Raw, 0, len(batchJob.RawInputs))
		for i, input := range batchJob.RawInputs {
			raw, err := normalize.FromJSON(input)
			if err != nil {
				log.Warn().Err(err).Str("job_id", batchJob.JobID).Int("index", i).Msg("Skipping undecodable input")
				continue
			}
			raws = append(raws, raw)
		}

		p := pipeline.New(log, regime)
		result, err := p.AnalyzeBatch(ctx, raws, batchJob.SourceHint, batchJob.History, batchJob.Vendors, batchJob.CurrentBalance)
		if err != nil {
			log.Error().Err(err).Str("job_id", batchJob.JobID).Msg("Pipeline execution failed")
			return err
		}

		log.Info().
			Str("job_id", batchJob.JobID).
			Int("reports", len(result.Reports)).
			Int("high_risk", result.FraudSummary.HighRiskCount).
			Msg("Pipeline execution completed successfully")

		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	if *jobsPath != "" {
		if err := enqueueFromFile(ctx, jobQueue, *jobsPath); err != nil {
			log.Fatal().Err(err).Str("path", *jobsPath).Msg("Failed to enqueue jobs from file")
		}
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Queue shutdown did not complete cleanly")
	}

	log.Info().Msg("Worker service stopped")
}

// enqueueFromFile reads a JSON array of analysis jobs and publishes each.
func enqueueFromFile(ctx context.Context, q jobs.Publisher, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("enqueueFromFile: reading %s: %w", path, err)
	}

	var batch []jobs.AnalyzeBatchJob
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("enqueueFromFile: parsing %s: %w", path, err)
	}

	for i := range batch {
		if err := q.PublishAnalyzeBatch(ctx, &batch[i]); err != nil {
			return fmt.Errorf("enqueueFromFile: publishing job %d: %w", i, err)
		}
	}
	return nil
}
