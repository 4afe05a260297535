package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/forscht/filedeck/internal/storage"
	"github.com/forscht/filedeck/pkg/validator"
)

var validate = validator.New()

func Load(app *fiber.App, store storage.Storage, cfg *Config) {

	// Setup config vars
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("username", cfg.Username)
		c.Locals("password", cfg.Password)
		c.Locals("guestmode", cfg.GuestMode)
		return c.Next()
	})

	app.Get("/health", HealthHandler(store))

	// public route for login
	app.Post("/user/login", LoginHandler())
	app.Get("/user/config", AuthConfigHandler())

	// Downloads are not authorized so that links work in download managers
	// and media players. Registered before the group so its auth never runs.
	app.Get("/files/download/:id", DownloadFileHandler(store))

	files := app.Group("/files", AuthHandler())
	files.Get("", ListFilesHandler())
	files.Post("/upload", UploadFileHandler(store, cfg.MaxUploadSize, cfg.AllowedMimeTypes))
	files.Post("/folders", CreateFolderHandler())
	files.Delete("/:id", DeleteFileHandler(store))
}
