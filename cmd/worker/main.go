package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	infraBQ "github.com/avelkov/finfacts/internal/infra/bigquery"
	"github.com/avelkov/finfacts/internal/ingest"
	"github.com/avelkov/finfacts/internal/jobs"
	"github.com/avelkov/finfacts/internal/jobs/inmemory"
	"github.com/avelkov/finfacts/internal/logger"
	"github.com/avelkov/finfacts/internal/sourcedoc"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	rootCtx := logger.WithContext(context.Background(), log)

	store, err := infraBQ.NewStore(rootCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create fact store")
	}
	defer store.Close()

	pipeline := ingest.NewPipeline(store)

	// In production, this would be replaced with Cloud Tasks or Pub/Sub.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	ctx, cancel := context.WithCancel(rootCtx)
	defer cancel()

	handler := func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestSourceJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Str("source", ingestJob.Source).
			Str("document_path", ingestJob.DocumentPath).
			Msg("Processing ingestion job")

		raw, err := sourcedoc.Load(ctx, ingestJob.DocumentPath)
		if err != nil {
			return err
		}

		docs := []ingest.SourceDocument{{Source: ingestJob.Source, Raw: raw}}
		var result *ingest.Result
		if ingestJob.Force {
			result, err = pipeline.IngestSources(ctx, docs)
		} else {
			result, err = pipeline.IngestIfEmpty(ctx, docs)
		}
		if err != nil {
			log.Error().Err(err).Str("job_id", ingestJob.JobID).Msg("Ingestion failed")
			return err
		}

		ingestJob.FactsWritten = result.FactsWritten
		ingestJob.Warnings = result.Warnings

		log.Info().
			Str("job_id", ingestJob.JobID).
			Int("facts_written", result.FactsWritten).
			Int("skipped", result.Skipped).
			Msg("Ingestion job completed")
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job queue")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Worker exited")
}
