package main

import (
	"context"
	"flag"

	"github.com/avelkov/finfacts/internal/domain"
	infraBQ "github.com/avelkov/finfacts/internal/infra/bigquery"
	"github.com/avelkov/finfacts/internal/ingest"
	"github.com/avelkov/finfacts/internal/logger"
	"github.com/avelkov/finfacts/internal/sourcedoc"
	"github.com/joho/godotenv"
)

func main() {
	var (
		columnReport   = flag.String("column-report", "", "Path or gs:// URI of the column/row report")
		categoryReport = flag.String("category-report", "", "Path or gs:// URI of the category/line-item report")
		force          = flag.Bool("force", false, "Ingest even when facts already exist")
	)
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	if *columnReport == "" && *categoryReport == "" {
		log.Fatal().Msg("At least one of -column-report or -category-report is required")
	}

	var docs []ingest.SourceDocument
	for _, src := range []struct {
		source string
		path   string
	}{
		{domain.SourceColumnReport, *columnReport},
		{domain.SourceCategoryReport, *categoryReport},
	} {
		if src.path == "" {
			continue
		}
		raw, err := sourcedoc.Load(ctx, src.path)
		if err != nil {
			log.Fatal().Err(err).Str("path", src.path).Msg("Failed to load source document")
		}
		docs = append(docs, ingest.SourceDocument{Source: src.source, Raw: raw})
	}

	store, err := infraBQ.NewStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create fact store")
	}
	defer store.Close()

	pipeline := ingest.NewPipeline(store)

	var result *ingest.Result
	if *force {
		result, err = pipeline.IngestSources(ctx, docs)
	} else {
		result, err = pipeline.IngestIfEmpty(ctx, docs)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Msg(w)
	}
	log.Info().
		Int("facts_written", result.FactsWritten).
		Int("skipped", result.Skipped).
		Int("warnings", len(result.Warnings)).
		Msg("Ingestion finished")
}
