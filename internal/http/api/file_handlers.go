package api

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	dp "github.com/forscht/filedeck/internal/dataprovider"
	"github.com/forscht/filedeck/internal/metrics"
	"github.com/forscht/filedeck/internal/storage"
	"github.com/forscht/filedeck/pkg/httprange"
	"github.com/forscht/filedeck/pkg/lreader"
	"github.com/forscht/filedeck/pkg/ns"
	"github.com/forscht/filedeck/pkg/safename"
)

func ListFilesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		parent, err := ns.Parse(strings.TrimSpace(c.Query("parent_id")))
		if err != nil {
			return fiber.NewError(StatusBadRequest, err.Error())
		}
		files, err := dp.Children(parent)
		if err != nil {
			if errors.Is(err, dp.ErrNotExist) {
				return fiber.NewError(StatusNotFound, err.Error())
			}
			if errors.Is(err, dp.ErrInvalidParent) {
				return fiber.NewError(StatusBadRequest, err.Error())
			}
			return err
		}
		return c.Status(StatusOk).JSON(files)
	}
}

func CreateFolderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(FolderRequest)
		if err := c.BodyParser(req); err != nil {
			return fiber.NewError(StatusBadRequest, ErrBadRequest)
		}
		name := strings.TrimSpace(req.Name)
		if err := validate.Name(name); err != nil {
			return fiber.NewError(StatusBadRequest, err.Error())
		}

		file, err := dp.Create(&dp.File{Name: name, Dir: true, Parent: req.Parent})
		if err != nil {
			if errors.Is(err, dp.ErrInvalidParent) || errors.Is(err, dp.ErrInvalidName) {
				return fiber.NewError(StatusBadRequest, err.Error())
			}
			return err
		}
		return c.Status(StatusCreated).JSON(file)
	}
}

// UploadFileHandler reads the multipart body as a stream. The blob is stored
// first and the record created once every part has been seen, since
// parent_id may follow the file part.
func UploadFileHandler(store storage.Storage, maxSize int64, allowed []string) fiber.Handler {
	patterns := compileMimePatterns(allowed)

	return func(c *fiber.Ctx) error {
		_, params, err := mime.ParseMediaType(string(c.Request().Header.ContentType()))
		if err != nil {
			return fiber.NewError(StatusBadRequest, ErrBadRequest)
		}
		boundary, ok := params["boundary"]
		if !ok {
			return fiber.NewError(StatusBadRequest, ErrBadRequest)
		}

		var body io.Reader = c.Context().RequestBodyStream()
		if body == nil {
			body = bytes.NewReader(c.Body())
		}
		mreader := multipart.NewReader(body, boundary)

		ctx := c.UserContext()
		var parent ns.NullID
		var pending *dp.File
		discard := func() {
			if pending != nil {
				if err := store.Delete(ctx, pending.BlobKey); err != nil {
					log.Warn().Str("c", "api").Err(err).Str("key", pending.BlobKey).Msg("failed to remove orphan blob")
				}
			}
		}

		for {
			part, err := mreader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				discard()
				return fiber.NewError(StatusBadRequest, ErrBadRequest)
			}

			switch part.FormName() {
			case "parent_id":
				v, err := io.ReadAll(io.LimitReader(part, 64))
				if err == nil {
					parent, err = ns.Parse(strings.TrimSpace(string(v)))
				}
				if err != nil {
					discard()
					return fiber.NewError(StatusBadRequest, ErrBadId)
				}
			case "file":
				if pending != nil {
					discard()
					return fiber.NewError(StatusBadRequest, ErrTooManyFiles)
				}
				name := safename.Clean(part.FileName())
				ctype := contentType(part.Header.Get(fiber.HeaderContentType), name)
				if !mimeAllowed(patterns, ctype) {
					return fiber.NewError(StatusUnsupportedMedia, "content type "+ctype+" is not allowed")
				}

				key := storage.NewKey()
				n, err := store.Put(ctx, key, lreader.New(part, maxSize))
				if err != nil {
					metrics.RecordUpload(n, err)
					_ = store.Delete(ctx, key)
					if errors.Is(err, lreader.ErrTooLarge) {
						return fiber.NewError(StatusRequestTooLarge, err.Error())
					}
					return err
				}
				pending = &dp.File{Name: name, ContentType: ctype, Size: &n, BlobKey: key}
			}
		}

		if pending == nil {
			return fiber.NewError(StatusBadRequest, ErrMissingFile)
		}
		pending.Parent = parent

		file, err := dp.Create(pending)
		if err != nil {
			discard()
			metrics.RecordUpload(0, err)
			if errors.Is(err, dp.ErrInvalidParent) || errors.Is(err, dp.ErrInvalidName) {
				return fiber.NewError(StatusBadRequest, err.Error())
			}
			return err
		}
		metrics.RecordUpload(*file.Size, nil)
		return c.Status(StatusCreated).JSON(file)
	}
}

func DeleteFileHandler(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ns.Parse(c.Params("id"))
		if err != nil || !id.Valid() {
			return fiber.NewError(StatusBadRequest, ErrBadId)
		}

		removed, err := dp.Delete(int64(id))
		if err != nil {
			if errors.Is(err, dp.ErrNotExist) {
				return fiber.NewError(StatusNotFound, err.Error())
			}
			return err
		}
		// The records are gone, a blob that fails to delete is only leaked.
		for _, f := range removed {
			if f.Dir || f.BlobKey == "" {
				continue
			}
			if err := store.Delete(c.UserContext(), f.BlobKey); err != nil {
				log.Warn().Str("c", "api").Err(err).Int64("id", f.Id).Msg("failed to delete blob")
			}
		}
		metrics.RecordDelete(len(removed))
		return c.SendStatus(StatusNoContent)
	}
}

func DownloadFileHandler(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ns.Parse(c.Params("id"))
		if err != nil || !id.Valid() {
			return fiber.NewError(StatusBadRequest, ErrBadId)
		}
		f, err := dp.Get(int64(id))
		if err != nil {
			if errors.Is(err, dp.ErrNotExist) {
				return fiber.NewError(StatusNotFound, err.Error())
			}
			return err
		}
		if f.Dir {
			return fiber.NewError(StatusBadRequest, ErrIsDirectory)
		}

		rc, size, err := store.Get(c.UserContext(), f.BlobKey)
		if err != nil {
			if errors.Is(err, storage.ErrNotExist) {
				return fiber.NewError(StatusNotFound, err.Error())
			}
			return err
		}

		ctype := f.ContentType
		if ctype == "" {
			ctype = fiber.MIMEOctetStream
		}
		c.Set(fiber.HeaderContentType, ctype)
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
		c.Set(fiber.HeaderAcceptRanges, "bytes")

		header := c.Get(fiber.HeaderRange)
		if header == "" {
			metrics.RecordDownload(size)
			c.Status(StatusOk).Response().SetBodyStream(rc, int(size))
			return nil
		}

		r, err := httprange.Parse(header, size)
		if err != nil {
			_ = rc.Close()
			if errors.Is(err, httprange.ErrUnsatisfiable) {
				c.Set(fiber.HeaderContentRange, "bytes */"+strconv.FormatInt(size, 10))
				return fiber.NewError(StatusRangeNotSatisfiable, err.Error())
			}
			return fiber.NewError(StatusBadRequest, err.Error())
		}
		body, err := skip(rc, r.Start)
		if err != nil {
			_ = rc.Close()
			return err
		}
		c.Set(fiber.HeaderContentRange, r.ContentRange())
		metrics.RecordDownload(r.Length)
		c.Status(StatusPartialContent).Response().SetBodyStream(readCloser{io.LimitReader(body, r.Length), rc}, int(r.Length))
		return nil
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

// skip advances rc by n bytes, seeking when the blob supports it.
func skip(rc io.ReadCloser, n int64) (io.Reader, error) {
	if n == 0 {
		return rc, nil
	}
	if s, ok := rc.(io.Seeker); ok {
		if _, err := s.Seek(n, io.SeekStart); err != nil {
			return nil, err
		}
		return rc, nil
	}
	if _, err := io.CopyN(io.Discard, rc, n); err != nil {
		return nil, err
	}
	return rc, nil
}

// contentType prefers the part header, then the extension.
func contentType(header, name string) string {
	if header != "" && header != fiber.MIMEOctetStream {
		if mt, _, err := mime.ParseMediaType(header); err == nil {
			return mt
		}
	}
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
	}
	return fiber.MIMEOctetStream
}

func compileMimePatterns(allowed []string) []glob.Glob {
	patterns := make([]glob.Glob, 0, len(allowed))
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		g, err := glob.Compile(a, '/')
		if err != nil {
			log.Warn().Str("c", "api").Str("pattern", a).Err(err).Msg("ignoring bad mime pattern")
			continue
		}
		patterns = append(patterns, g)
	}
	return patterns
}

// mimeAllowed reports whether ctype matches any pattern. No patterns allow all.
func mimeAllowed(patterns []glob.Glob, ctype string) bool {
	if len(patterns) == 0 {
		return true
	}
	ctype = strings.ToLower(ctype)
	for _, g := range patterns {
		if g.Match(ctype) {
			return true
		}
	}
	return false
}
