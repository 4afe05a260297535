package http

import (
	"errors"
	"strings"

	fzl "github.com/gofiber/contrib/fiberzerolog"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"

	"github.com/forscht/filedeck/internal/http/api"
	"github.com/forscht/filedeck/internal/metrics"
	"github.com/forscht/filedeck/internal/storage"
)

type Config struct {
	Addr             string   `mapstructure:"addr"`
	HTTPSAddr        string   `mapstructure:"https_addr"`
	HTTPSKeyPath     string   `mapstructure:"https_keypath"`
	HTTPSCrtPath     string   `mapstructure:"https_crtpath"`
	Username         string   `mapstructure:"username"`
	Password         string   `mapstructure:"password"`
	GuestMode        bool     `mapstructure:"guest_mode"`
	CorsOrigins      string   `mapstructure:"cors_origins"`
	MaxUploadMB      int64    `mapstructure:"max_upload_mb"`
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types"`
}

const mb = 1 << 20

// New builds the fiber app serving the file API on top of store and the
// loaded dataprovider.
func New(store storage.Storage, cfg *Config) *fiber.App {
	maxUpload := cfg.MaxUploadMB * mb
	if maxUpload <= 0 {
		maxUpload = 100 * mb
	}

	fconfig := fiber.Config{
		DisablePreParseMultipartForm: true, // https://github.com/gofiber/fiber/issues/1838
		StreamRequestBody:            true,
		DisableStartupMessage:        true,
		// multipart framing on top of the largest accepted file
		BodyLimit: int(maxUpload + mb),
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError // Status code defaults to 500
			// Retrieve the custom status code if it's a *fiber.Error
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if code != fiber.StatusInternalServerError {
				return ctx.Status(code).JSON(api.Response{Message: err.Error()})
			}
			log.Error().Str("c", "httpserver").Err(err).Str("path", ctx.Path()).Msg("request failed")
			return ctx.Status(code).JSON(api.Response{Message: "internal server error"})
		},
	}

	// Initialize fiber app
	app := fiber.New(fconfig)

	// Enable logger
	logger := log.With().Str("c", "httpserver").Logger()
	app.Use(fzl.New(fzl.Config{Logger: &logger}))

	// Enable cors
	origins := strings.TrimSpace(cfg.CorsOrigins)
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{AllowOrigins: origins}))

	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	api.Load(app, store, &api.Config{
		Username:         cfg.Username,
		Password:         cfg.Password,
		GuestMode:        cfg.GuestMode,
		MaxUploadSize:    maxUpload,
		AllowedMimeTypes: cfg.AllowedMimeTypes,
	})

	return app
}

func Serv(store storage.Storage, cfg *Config) error {
	app := New(store, cfg)

	// Error channel to capture any listen errors
	errChan := make(chan error)

	// Listen on HTTP
	go func() {
		if cfg.Addr != "" {
			log.Info().Str("c", "http").Str("addr", cfg.Addr).Msg("starting http server")
			errChan <- app.Listen(cfg.Addr)
		}
	}()

	// Listen on HTTPS
	go func() {
		if cfg.HTTPSAddr != "" && cfg.HTTPSCrtPath != "" && cfg.HTTPSKeyPath != "" {
			log.Info().Str("c", "http").Str("addr", cfg.HTTPSAddr).Msg("starting https server")
			errChan <- app.ListenTLS(cfg.HTTPSAddr, cfg.HTTPSCrtPath, cfg.HTTPSKeyPath)
		}
	}()

	// Return the first error received
	return <-errChan
}
