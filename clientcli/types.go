package clientcli

// UploadOptions selects what Upload sends and where.
//
// With Recursive, LocalPath is a directory and RemotePath the prefix its
// regular files are stored under. ContentType overrides sniffing for every
// file sent.
type UploadOptions struct {
	LocalPath   string
	RemotePath  string
	ContentType string
	Recursive   bool

	// Namespaced prefixes every remote path with the signer's public key,
	// which is where a multiuser server expects the file. It is implied when
	// the client config is Multiuser.
	Namespaced bool
}

// UploadResult is the outcome for one file. A failed file keeps its paths and
// carries Err; the server-reported fields are empty.
type UploadResult struct {
	LocalPath   string `json:"local_path"`
	RemotePath  string `json:"remote_path"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`
	Size        int64  `json:"size_bytes"`
	Message     string `json:"message,omitempty"`
	Err         error  `json:"-"`
}

// DownloadOptions names a stored file and where to put it. An empty
// LocalPath saves under the remote base name; "-" streams the body back to
// the caller instead.
type DownloadOptions struct {
	RemotePath string
	LocalPath  string
}

// DownloadResult describes a fetched file as the server served it.
type DownloadResult struct {
	RemotePath  string `json:"remote_path"`
	LocalPath   string `json:"local_path"`
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`
	Size        int64  `json:"size_bytes"`
}

// KeyPair is a generated signing identity, both halves hex encoded.
type KeyPair struct {
	PublicKey string `json:"public_key"`
	SecretKey string `json:"secret_key"`
}

// Identity is the signer a config resolves to and the URL its uploads go under.
type Identity struct {
	Profile    string `json:"profile,omitempty"`
	Endpoint   string `json:"endpoint"`
	PublicKey  string `json:"public_key"`
	Multiuser  bool   `json:"multiuser"`
	UploadRoot string `json:"upload_root"`
}
