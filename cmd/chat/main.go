package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/avelkov/finfacts/internal/assistant"
	infraBQ "github.com/avelkov/finfacts/internal/infra/bigquery"
	"github.com/avelkov/finfacts/internal/introspect"
	"github.com/avelkov/finfacts/internal/logger"
	"github.com/avelkov/finfacts/internal/mediator"
	"github.com/avelkov/finfacts/internal/queryguard"
	"github.com/avelkov/finfacts/internal/resolver"
	"github.com/joho/godotenv"
)

func main() {
	var (
		showTables = flag.Bool("show-tables", false, "Print the raw result table under each answer")
	)
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	store, err := infraBQ.NewStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create fact store")
	}
	defer store.Close()

	queryMediator := mediator.New(
		queryguard.New(queryguard.DefaultMaxRows),
		resolver.New(store),
		introspect.New(store, 0),
		store,
	)
	bot := assistant.New(queryMediator)

	fmt.Println("finfacts chat. Ask about the ingested financials; empty line or Ctrl-D to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		answer, table, err := bot.Answer(ctx, question)
		if err != nil {
			log.Error().Err(err).Msg("Failed to answer")
			continue
		}

		fmt.Println()
		fmt.Println(answer)
		if *showTables && table != "" {
			fmt.Println()
			fmt.Println(table)
		}
		fmt.Println()
	}
}
