package clientcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// Formatter prints command results.
type Formatter interface {
	FormatUpload(w io.Writer, results []UploadResult) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatKeyPair(w io.Writer, kp KeyPair) error
	FormatIdentity(w io.Writer, id Identity) error
	FormatError(w io.Writer, err error) error
}

// NewFormatter picks JSON output over text; quiet only affects text.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter prints aligned text. In quiet mode it prints one bare value
// per result, suitable for shell pipelines.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload prints one row per file with the public URL it is now served
// at. Quiet mode prints only the URLs of successful uploads.
func (f *HumanFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range results {
		switch {
		case r.Err != nil:
			_, _ = fmt.Fprintf(tw, "failed\t%s\t%v\n", r.LocalPath, r.Err)
		case f.Quiet:
			_, _ = fmt.Fprintln(tw, r.URL)
		default:
			_, _ = fmt.Fprintf(tw, "stored\t%s\t%s\t%s\n", r.URL, humanize.IBytes(uint64(max(r.Size, 0))), etagLabel(r.ETag))
		}
	}
	return tw.Flush()
}

// FormatDownload prints where the file went. Nothing is printed in quiet mode
// or when the content was streamed to stdout, so it cannot mix with the data.
func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if f.Quiet || result.LocalPath == "-" {
		return nil
	}
	_, err := fmt.Fprintf(w, "saved %s -> %s (%s, %s)\n",
		result.RemotePath, result.LocalPath, humanize.IBytes(uint64(max(result.Size, 0))), etagLabel(result.ETag))
	return err
}

// FormatKeyPair prints a generated key pair. The secret key is always shown
// since this is the only time it exists.
func (f *HumanFormatter) FormatKeyPair(w io.Writer, kp KeyPair) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, kp.SecretKey)
		return nil
	}
	_, _ = fmt.Fprintf(w, "Public Key: %s\n", kp.PublicKey)
	_, _ = fmt.Fprintf(w, "Secret Key: %s\n", kp.SecretKey)
	_, _ = fmt.Fprintln(w, "Keep the secret key private. Give the public key to the server owner.")
	return nil
}

// FormatIdentity prints the signer and upload root. Quiet mode prints only
// the public key, for scripts that hand it to a server owner.
func (f *HumanFormatter) FormatIdentity(w io.Writer, id Identity) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, id.PublicKey)
		return nil
	}
	mode := "singleuser"
	if id.Multiuser {
		mode = "multiuser"
	}
	if id.Profile != "" {
		_, _ = fmt.Fprintf(w, "Profile:    %s\n", id.Profile)
	}
	_, _ = fmt.Fprintf(w, "Endpoint:   %s (%s)\n", id.Endpoint, mode)
	_, _ = fmt.Fprintf(w, "Public Key: %s\n", id.PublicKey)
	_, _ = fmt.Fprintf(w, "Uploads to: %s\n", id.UploadRoot)
	return nil
}

// FormatError prints err after a "nosdav-cli:" prefix.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "nosdav-cli: %v\n", err)
	return nil
}

func etagLabel(etag string) string {
	if etag == "" {
		return "no etag"
	}
	return "etag " + etag
}

// JSONFormatter prints each result as one indented JSON document.
type JSONFormatter struct{}

// uploadJSON is an UploadResult with the error flattened to a string.
type uploadJSON struct {
	LocalPath   string `json:"local_path"`
	RemotePath  string `json:"remote_path"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	ETag        string `json:"etag,omitempty"`
	Size        int64  `json:"size_bytes,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// FormatUpload formats upload results as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	out := make([]uploadJSON, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			out = append(out, uploadJSON{LocalPath: r.LocalPath, RemotePath: r.RemotePath, Error: r.Err.Error()})
			continue
		}
		out = append(out, uploadJSON{
			LocalPath:   r.LocalPath,
			RemotePath:  r.RemotePath,
			URL:         r.URL,
			ContentType: r.ContentType,
			ETag:        r.ETag,
			Size:        r.Size,
			Message:     r.Message,
		})
	}
	return writeJSON(w, out)
}

// FormatDownload formats download result as JSON.
func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

// FormatKeyPair formats a key pair as JSON.
func (f *JSONFormatter) FormatKeyPair(w io.Writer, kp KeyPair) error {
	return writeJSON(w, kp)
}

// FormatIdentity formats an identity as JSON.
func (f *JSONFormatter) FormatIdentity(w io.Writer, id Identity) error {
	return writeJSON(w, id)
}

// FormatError writes {"error": ...}, adding "status" for server rejections.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	out := struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}{Error: err.Error()}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		out.Status = apiErr.StatusCode
	}
	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
