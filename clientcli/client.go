package clientcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/nosdav/nosdav/eventsig"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency bounds parallel PUTs during a recursive upload.
	DefaultConcurrency = 4
)

// Client signs uploads with a Nostr key and fetches public files.
type Client struct {
	config      *Config
	httpClient  *http.Client
	now         func() time.Time
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock sets the time used for created_at on signed events.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithConcurrency sets how many files a recursive upload sends at once.
// Values below 1 mean one at a time.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = max(n, 1)
	}
}

// New creates a Client. The secret key is only checked when uploading.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	resolved := cfg.WithDefaults()
	resolved.Endpoint = strings.TrimSuffix(resolved.Endpoint, "/")

	c := &Client{
		config:      resolved,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		now:         time.Now,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GenerateKeyPair creates a fresh signing identity.
func GenerateKeyPair() (KeyPair, error) {
	sk, pk, err := eventsig.GenerateKey()
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{SecretKey: sk, PublicKey: pk}, nil
}

// URL returns the public URL of remotePath on the configured server.
func (c *Client) URL(remotePath string) string {
	return c.config.Endpoint + cleanRemote(remotePath)
}

// Ping checks that the endpoint is a nosdav server: an OPTIONS preflight must
// answer 204 and list PUT among the allowed methods.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.config.Endpoint+"/", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.config.Endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: OPTIONS returned %d", ErrNotNosdav, resp.StatusCode)
	}
	for _, m := range strings.Split(resp.Header.Get("Access-Control-Allow-Methods"), ",") {
		if strings.TrimSpace(m) == http.MethodPut {
			return nil
		}
	}
	return fmt.Errorf("%w: PUT not in allowed methods", ErrNotNosdav)
}

// uploadJob is one local file and the remote path it goes to.
type uploadJob struct {
	local, remote, contentType string
}

// Upload sends one file, or with Recursive every file under a directory.
//
// A single-file upload returns the server's rejection as the error. A
// recursive upload keeps going and records each failure in its result.
//
// Namespaced uploads go under /<pubkey>/. A multiuser server accepts only
// files directly inside that directory, so nested paths fail with
// ErrNestedPath without a request being sent.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}
	pubKey, err := c.config.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	namespace := ""
	if opts.Namespaced || c.config.Multiuser {
		namespace = pubKey
	}

	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	if !opts.Recursive || !info.IsDir() {
		job := uploadJob{local: opts.LocalPath, remote: opts.RemotePath, contentType: opts.ContentType}
		if namespace != "" {
			if job.remote, err = namespaced(namespace, job.remote); err != nil {
				return nil, fmt.Errorf("upload %s: %w", opts.RemotePath, err)
			}
		}
		result, err := c.put(ctx, job)
		if err != nil {
			return nil, err
		}
		return []UploadResult{result}, nil
	}

	jobs, err := collectJobs(opts.LocalPath, opts.RemotePath)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return c.putAll(ctx, jobs, namespace), nil
}

// collectJobs lists every regular file under dir, mapped below remotePrefix.
func collectJobs(dir, remotePrefix string) ([]uploadJob, error) {
	var jobs []uploadJob
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		jobs = append(jobs, uploadJob{local: p, remote: path.Join(remotePrefix, filepath.ToSlash(rel))})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return jobs, nil
}

// putAll uploads jobs with bounded concurrency. Results keep the job order.
func (c *Client) putAll(ctx context.Context, jobs []uploadJob, namespace string) []UploadResult {
	results := make([]UploadResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, job := range jobs {
		if namespace != "" {
			remote, err := namespaced(namespace, job.remote)
			if err != nil {
				results[i] = UploadResult{LocalPath: job.local, RemotePath: job.remote, Err: err}
				continue
			}
			job.remote = remote
		}
		g.Go(func() error {
			r, err := c.put(gctx, job)
			if err != nil {
				r = UploadResult{LocalPath: job.local, RemotePath: strings.TrimPrefix(cleanRemote(job.remote), "/"), Err: err}
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// namespaced places remote under /<pubkey>/ and refuses anything deeper than
// one file name.
func namespaced(pubKey, remote string) (string, error) {
	name := strings.TrimPrefix(cleanRemote(remote), "/")
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrNestedPath, remote)
	}
	return pubKey + "/" + name, nil
}

// put signs and sends one PUT request.
func (c *Client) put(ctx context.Context, job uploadJob) (UploadResult, error) {
	file, err := os.Open(job.local) //#nosec G304 -- job.local is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}

	contentType := job.contentType
	if contentType == "" {
		if contentType, err = sniffContentType(file); err != nil {
			return UploadResult{}, err
		}
	}

	remote := cleanRemote(job.remote)
	target := c.config.Endpoint + remote

	auth, err := eventsig.AuthorizationHeader(c.config.SecretKey, http.MethodPut, target, c.now())
	if err != nil {
		return UploadResult{}, fmt.Errorf("sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, file)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = info.Size()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("put %s: %w", remote, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("read response: %w", err)
	}

	// nosdav answers 201 for every stored file; 200 is tolerated for servers
	// that distinguish overwrites.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return UploadResult{}, newAPIError(resp.StatusCode, body)
	}

	return UploadResult{
		LocalPath:   job.local,
		RemotePath:  strings.TrimPrefix(remote, "/"),
		URL:         target,
		ContentType: contentType,
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		Size:        info.Size(),
		Message:     strings.TrimSpace(string(body)),
	}, nil
}

// sniffContentType detects the type from the file's leading bytes and
// rewinds the file for the upload.
func sniffContentType(file *os.File) (string, error) {
	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	return mt.String(), nil
}

// Download fetches a public file. Reads are unauthenticated.
//
// With LocalPath "-" the body is returned for the caller to read and close.
// Otherwise it is written to a temp file next to the destination and renamed
// into place, so a failed download never leaves a partial file, and the
// returned reader is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.RemotePath == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyPath)
	}
	remote := cleanRemote(opts.RemotePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+remote, http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("get %s: %w", remote, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, newAPIError(resp.StatusCode, body)
	}

	result := &DownloadResult{
		RemotePath:  strings.TrimPrefix(remote, "/"),
		LocalPath:   opts.LocalPath,
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}

	if opts.LocalPath == "-" {
		return result, resp.Body, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if result.LocalPath == "" {
		result.LocalPath = path.Base(remote)
	}

	n, err := writeFileAtomic(result.LocalPath, resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("download %s: %w", remote, err)
	}
	result.Size = n
	return result, nil, nil
}

// writeFileAtomic copies r into a temp file beside dest and renames it over
// dest once the copy is complete.
func writeFileAtomic(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".nosdav-download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("move into place: %w", err)
	}
	return n, nil
}

// cleanRemote turns a remote path into "/a/b" form: one leading slash, no
// trailing slash, no empty or "." segments. ".." is left for the server to
// reject.
func cleanRemote(p string) string {
	var kept []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" && seg != "." {
			kept = append(kept, seg)
		}
	}
	return "/" + strings.Join(kept, "/")
}

// NormalizeLocalToRemotePath derives a remote path from a local one: slashes
// are normalized, the path is cleaned, and leading "/", "./" and "../"
// components are dropped since they have no meaning on the server.
func NormalizeLocalToRemotePath(localPath string) string {
	cleaned := path.Clean(filepath.ToSlash(localPath))

	segs := strings.Split(cleaned, "/")
	for len(segs) > 0 && (segs[0] == "" || segs[0] == "." || segs[0] == "..") {
		segs = segs[1:]
	}
	return strings.Join(segs, "/")
}

// APIError is a non-success response. nosdav explains rejections in a short
// plain-text body, kept as Reason.
type APIError struct {
	StatusCode int
	Reason     string
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Reason: strings.TrimSpace(string(body))}
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Reason)
}

// Is matches any *APIError with the same status, so the sentinels below work
// with errors.Is.
func (e *APIError) Is(target error) bool {
	var t *APIError
	return errors.As(target, &t) && t.StatusCode == e.StatusCode
}

// Status sentinels for errors.Is.
var (
	ErrNotFound     = &APIError{StatusCode: http.StatusNotFound}
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &APIError{StatusCode: http.StatusForbidden}
	ErrTooLarge     = &APIError{StatusCode: http.StatusRequestEntityTooLarge}
)
