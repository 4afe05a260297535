// Package filestore is the client for the remote file store API. It turns the
// store's JSON records into FileEntry values and every failure into a
// *RequestError.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	OpList         = "list"
	OpUpload       = "upload"
	OpCreateFolder = "create folder"
	OpDelete       = "delete"
	OpDownload     = "download"
	OpLogin        = "login"
	OpHealth       = "health"
)

type Config struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RetryMax  int           `mapstructure:"retry_max"`
	AuthToken string        `mapstructure:"auth_token"`
}

type Client struct {
	baseURL string
	// retry serves idempotent calls, GET and DELETE.
	retry *retryablehttp.Client
	// plain serves POSTs, which must not be replayed.
	plain *http.Client
	// stream has no overall deadline so long transfers rely on ctx only.
	stream *http.Client

	mu    sync.RWMutex
	token string
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	l zerolog.Logger
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.l.Error().Fields(kv).Msg(msg) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.l.Warn().Fields(kv).Msg(msg) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.l.Debug().Fields(kv).Msg(msg) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.l.Trace().Fields(kv).Msg(msg) }

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	plain := &http.Client{Timeout: timeout}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = plain
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = retryLogger{log.With().Str("c", "filestore").Logger()}
	// hand the last response back so its status and body reach the caller
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		retry:   retryClient,
		plain:   plain,
		stream:  &http.Client{},
		token:   cfg.AuthToken,
	}
}

// SetAuthToken installs the bearer token sent with every call. An empty
// token stops sending the header.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) authorize(h http.Header) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}

// DownloadURL returns the address the content of id is served from.
func (c *Client) DownloadURL(id string) string {
	return c.baseURL + "/files/download/" + url.PathEscape(id)
}

// List returns the children of parent, or the root entries when parent is nil.
func (c *Client) List(ctx context.Context, parent *string) ([]FileEntry, error) {
	target := c.baseURL + "/files"
	if parent != nil {
		target += "?" + url.Values{"parent_id": {*parent}}.Encode()
	}
	resp, err := c.idempotent(ctx, OpList, http.MethodGet, target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var records []record
	if err = json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, &RequestError{Op: OpList, Status: resp.StatusCode, Text: "malformed listing", Err: err}
	}
	entries := make([]FileEntry, 0, len(records))
	for i := range records {
		entries = append(entries, records[i].entry())
	}
	log.Debug().Str("c", "filestore").Interface("parent", parent).Int("count", len(entries)).Msg("listed")
	return entries, nil
}

// Upload streams r as a multipart form with the file part named name.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader, parent *string) (FileEntry, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, name, r, parent))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/upload", pr)
	if err != nil {
		_ = pr.Close()
		return FileEntry{}, &RequestError{Op: OpUpload, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req.Header)

	resp, err := c.stream.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return FileEntry{}, &RequestError{Op: OpUpload, Err: err}
	}
	entry, err := decodeEntry(OpUpload, resp)
	if err == nil {
		log.Debug().Str("c", "filestore").Str("name", entry.Name).Str("id", entry.ID).Msg("uploaded")
	}
	return entry, err
}

func writeUpload(mw *multipart.Writer, name string, r io.Reader, parent *string) error {
	if parent != nil {
		if err := mw.WriteField("parent_id", *parent); err != nil {
			return err
		}
	}
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": "file", "filename": name}))
	h.Set("Content-Type", ctype)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err = io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// CreateFolder creates a directory named name under parent, the root when nil.
func (c *Client) CreateFolder(ctx context.Context, name string, parent *string) (FileEntry, error) {
	body, err := json.Marshal(folderRequest{Name: name, ParentID: parent})
	if err != nil {
		return FileEntry{}, &RequestError{Op: OpCreateFolder, Err: err}
	}
	resp, err := c.post(ctx, OpCreateFolder, "/files/folders", body)
	if err != nil {
		return FileEntry{}, err
	}
	return decodeEntry(OpCreateFolder, resp)
}

// Delete removes id. Directories are removed with their content.
func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.idempotent(ctx, OpDelete, http.MethodDelete, c.baseURL+"/files/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Download copies the content of id into w and returns the bytes written.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(id), nil)
	if err != nil {
		return 0, &RequestError{Op: OpDownload, Err: err}
	}
	c.authorize(req.Header)
	resp, err := c.stream.Do(req)
	if err != nil {
		return 0, &RequestError{Op: OpDownload, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, statusError(OpDownload, resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &RequestError{Op: OpDownload, Status: resp.StatusCode, Text: "transfer interrupted", Err: err}
	}
	return n, nil
}

// Login exchanges credentials for a bearer token and installs it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", &RequestError{Op: OpLogin, Err: err}
	}
	resp, err := c.post(ctx, OpLogin, "/user/login", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out response
	var token string
	if err = json.NewDecoder(resp.Body).Decode(&out); err == nil {
		err = json.Unmarshal(out.Data, &token)
	}
	if err != nil || token == "" {
		return "", &RequestError{Op: OpLogin, Status: resp.StatusCode, Text: "no token in response", Err: err}
	}
	c.SetAuthToken(token)
	return token, nil
}

// Health checks that the store answers.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.idempotent(ctx, OpHealth, http.MethodGet, c.baseURL+"/health")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// idempotent runs a GET or DELETE through the retrying client. A non-2xx
// response is turned into a *RequestError and its body closed.
func (c *Client) idempotent(ctx context.Context, op, method, target string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req.Header)

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(op, resp)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, op, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req.Header)

	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(op, resp)
	}
	return resp, nil
}

func decodeEntry(op string, resp *http.Response) (FileEntry, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FileEntry{}, statusError(op, resp)
	}
	var rec record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return FileEntry{}, &RequestError{Op: op, Status: resp.StatusCode, Text: "malformed record", Err: err}
	}
	if rec.ID == "" {
		return FileEntry{}, &RequestError{Op: op, Status: resp.StatusCode, Text: "record without id", Err: fmt.Errorf("missing id")}
	}
	return rec.entry(), nil
}
