package api

import (
	"github.com/gofiber/fiber/v2"

	dp "github.com/forscht/filedeck/internal/dataprovider"
	"github.com/forscht/filedeck/internal/storage"
)

func HealthHandler(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(StatusOk).JSON(Response{
			Message: "ok",
			Data: map[string]string{
				"dataprovider": dp.Name(),
				"storage":      store.Name(),
			},
		})
	}
}
