package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	zl "github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	dp "github.com/forscht/filedeck/internal/dataprovider"
	"github.com/forscht/filedeck/internal/dataprovider/boltdb"
	"github.com/forscht/filedeck/internal/dataprovider/postgres"
	"github.com/forscht/filedeck/internal/http"
	"github.com/forscht/filedeck/internal/storage"
)

var version = "dev"

// Config represents the entire configuration as defined in the YAML file.
type Config struct {
	Dataprovider struct {
		Bolt     boltdb.Config   `mapstructure:"boltdb"`
		Postgres postgres.Config `mapstructure:"postgres"`
	} `mapstructure:"dataprovider"`

	Storage storage.Config `mapstructure:"storage"`

	HTTP http.Config `mapstructure:"http"`
}

var config Config

var (
	showVersion = flag.Bool("version", false, "print version information and exit")
	debugMode   = flag.Bool("debug", false, "enable debug logs")
	configFile  = flag.String("config", "", "path to filedeckd configuration file")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("filedeckd: %s\n", version)
		os.Exit(0)
	}

	// Setup logger
	log.Logger = zl.New(zl.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	zl.SetGlobalLevel(zl.InfoLevel)
	if *debugMode {
		zl.SetGlobalLevel(zl.DebugLevel)
	}

	// Load config file
	initConfig()

	// Load data provider, postgres wins when configured
	var provider dp.DataProvider
	var err error
	if config.Dataprovider.Postgres.DbURL != "" {
		provider, err = postgres.New(&config.Dataprovider.Postgres)
	} else {
		provider, err = boltdb.New(&config.Dataprovider.Bolt)
	}
	if err != nil {
		log.Fatal().Str("c", "main").Err(err).Msg("failed to open dataprovider")
	}
	dp.Load(provider)
	defer func() { _ = dp.Close() }()

	store, err := storage.New(context.Background(), &config.Storage)
	if err != nil {
		log.Fatal().Str("c", "main").Err(err).Msg("failed to open blob storage")
	}

	if err = http.Serv(store, &config.HTTP); err != nil {
		log.Fatal().Str("c", "main").Err(err).Msgf("filedeckd crashed")
	}
}

func initConfig() {
	// Setup config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/filedeckd/")
	if *configFile != "" {
		viper.SetConfigFile(*configFile)
	}

	viper.SetDefault("http.addr", ":2525")
	viper.SetDefault("http.max_upload_mb", 100)
	viper.SetDefault("dataprovider.boltdb.db_path", "./filedeck.db")
	viper.SetDefault("storage.dir", "./data")

	if err := viper.ReadInConfig(); err != nil {
		// env and defaults are enough to run
		var notFound viper.ConfigFileNotFoundError
		if *configFile != "" || !errors.As(err, &notFound) {
			log.Fatal().Str("c", "config").Err(err).Msg("failed to read config")
		}
	}

	// Bind env
	_ = viper.BindEnv("dataprovider.boltdb.db_path", "BOLTDB_DB_PATH")
	_ = viper.BindEnv("dataprovider.postgres.db_url", "POSTGRES_DB_URL")
	_ = viper.BindEnv("dataprovider.postgres.skip_migration", "POSTGRES_SKIP_MIGRATION")

	_ = viper.BindEnv("storage.dir", "STORAGE_DIR")
	_ = viper.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	_ = viper.BindEnv("storage.s3.bucket", "S3_BUCKET")
	_ = viper.BindEnv("storage.s3.region", "S3_REGION")
	_ = viper.BindEnv("storage.s3.access_key", "S3_ACCESS_KEY")
	_ = viper.BindEnv("storage.s3.secret_key", "S3_SECRET_KEY")
	_ = viper.BindEnv("storage.s3.prefix", "S3_PREFIX")

	_ = viper.BindEnv("http.addr", "HTTP_ADDR")
	_ = viper.BindEnv("http.username", "HTTP_USERNAME")
	_ = viper.BindEnv("http.password", "HTTP_PASSWORD")
	_ = viper.BindEnv("http.guest_mode", "HTTP_GUEST_MODE")
	_ = viper.BindEnv("http.cors_origins", "CORS_ORIGINS")
	_ = viper.BindEnv("http.max_upload_mb", "MAX_UPLOAD_MB")
	_ = viper.BindEnv("http.allowed_mime_types", "ALLOWED_MIME_TYPES")
	_ = viper.BindEnv("http.https_addr", "HTTPS_ADDR")
	_ = viper.BindEnv("http.https_crtpath", "HTTPS_CRTPATH")
	_ = viper.BindEnv("http.https_keypath", "HTTPS_KEYPATH")

	err := viper.Unmarshal(&config)
	if err != nil {
		log.Fatal().Str("c", "config").Err(err).Msg("failed to decode config into struct")
	}
}
