package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avelkov/finfacts/internal/api/handlers"
	"github.com/avelkov/finfacts/internal/api/middleware"
	infraBQ "github.com/avelkov/finfacts/internal/infra/bigquery"
	"github.com/avelkov/finfacts/internal/ingest"
	"github.com/avelkov/finfacts/internal/introspect"
	"github.com/avelkov/finfacts/internal/jobs"
	"github.com/avelkov/finfacts/internal/jobs/inmemory"
	"github.com/avelkov/finfacts/internal/logger"
	"github.com/avelkov/finfacts/internal/mediator"
	"github.com/avelkov/finfacts/internal/queryguard"
	"github.com/avelkov/finfacts/internal/resolver"
	"github.com/avelkov/finfacts/internal/sourcedoc"
	"github.com/joho/godotenv"
)

func main() {
	var (
		port    = flag.String("port", "8080", "HTTP server port")
		maxRows = flag.Int("max-rows", queryguard.DefaultMaxRows, "Row cap enforced on read queries")
	)
	flag.Parse()

	// Optional .env for local runs; env vars win when both are set.
	_ = godotenv.Load()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	store, err := infraBQ.NewStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create fact store")
	}
	defer store.Close()

	accountResolver := resolver.New(store)
	introspector := introspect.New(store, 0)
	queryMediator := mediator.New(queryguard.New(*maxRows), accountResolver, introspector, store)
	pipeline := ingest.NewPipeline(store, accountResolver, introspector)

	// Job infrastructure for async ingestion
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
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
			Int("warnings", len(result.Warnings)).
			Msg("Ingestion job completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting ingestion worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Ingestion worker stopped with error")
		}
	}()

	queryHandler := handlers.NewQueryHandler(queryMediator, log)
	ingestHandler := handlers.NewIngestHandler(jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			queryHandler.Query(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/v1/resolve", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			queryHandler.ResolveAccount(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/v1/schema", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			queryHandler.GetSchema(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/v1/ingest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ingestHandler.EnqueueIngest(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/v1/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
