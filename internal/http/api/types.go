package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/forscht/filedeck/pkg/ns"
)

const (
	StatusOk                  = fiber.StatusOK
	StatusCreated             = fiber.StatusCreated
	StatusNoContent           = fiber.StatusNoContent
	StatusPartialContent      = fiber.StatusPartialContent
	StatusBadRequest          = fiber.StatusBadRequest
	StatusUnauthorized        = fiber.StatusUnauthorized
	StatusNotFound            = fiber.StatusNotFound
	StatusRequestTooLarge     = fiber.StatusRequestEntityTooLarge
	StatusUnsupportedMedia    = fiber.StatusUnsupportedMediaType
	StatusRangeNotSatisfiable = fiber.StatusRequestedRangeNotSatisfiable
)

const (
	ErrBadRequest          = "bad request body"
	ErrUnauthorized        = "authorization failed"
	ErrBadUsernamePassword = "invalid username or password"
	ErrBadId               = "invalid id"
	ErrMissingFile         = "missing file part"
	ErrTooManyFiles        = "only one file per request"
	ErrIsDirectory         = "cannot download a directory"
)

// Config carries the server settings the handlers need.
type Config struct {
	Username         string
	Password         string
	GuestMode        bool
	MaxUploadSize    int64
	AllowedMimeTypes []string
}

type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type User struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type FolderRequest struct {
	Name   string    `json:"name"`
	Parent ns.NullID `json:"parent_id"`
}
