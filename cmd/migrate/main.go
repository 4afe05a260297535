package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	zl "github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forscht/filedeck/internal/dataprovider/postgres"
)

func main() {
	dbURL := flag.String("db-url", os.Getenv("POSTGRES_DB_URL"), "Postgres database url of the filedeckd metadata store")
	status := flag.Bool("status", false, "Only print applied and pending migrations")
	flag.Parse()

	if *dbURL == "" {
		fmt.Println("Error: --db-url or POSTGRES_DB_URL must be provided")
		flag.Usage()
		os.Exit(1)
	}

	// Setup logger
	log.Logger = zl.New(zl.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	zl.SetGlobalLevel(zl.InfoLevel)

	// Connect without touching the schema
	db, err := postgres.NewDb(*dbURL, true)
	if err != nil {
		log.Fatal().Str("c", "migrate").Err(err).Msg("could not connect to postgres")
	}
	defer db.Close()
	log.Info().Str("c", "migrate").Msg("connected with postgres")

	applied, pending, err := postgres.Status(db)
	if err != nil {
		log.Fatal().Str("c", "migrate").Err(err).Msg("failed to read migration status")
	}
	log.Info().Str("c", "migrate").Ints("applied", applied).Ints("pending", pending).Msg("migration status")
	if *status || len(pending) == 0 {
		return
	}

	if err = postgres.Migrate(db); err != nil {
		log.Fatal().Str("c", "migrate").Err(err).Msg("migration failed")
	}
	log.Info().Str("c", "migrate").Int("count", len(pending)).Msg("schema is up to date")
}
