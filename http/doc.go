// Package http serves nosdav blob storage over HTTP.
//
// # Routes
//
// Every path is handled by three methods:
//
//   - OPTIONS answers CORS preflight with 204 and no body
//   - GET returns the stored bytes with a Content-Type derived from the file
//     extension, and an ETag when the upload ledger knows the file
//   - PUT stores the request body after the Authorization header has been
//     verified, answering 201 "File created"
//
// Any other method gets 405. Every response, including errors, carries the
// configured Access-Control-Allow-* headers.
//
// # Authentication
//
// Writes go through AuthMiddleware, which asks a RequestVerifier for the
// identity behind the "Nostr <base64 event>" Authorization header and stores it
// in the request context:
//
//	verifier := nosdav.NewCredentialVerifier(eventsig.NewVerifier())
//	handler := http.NewHandler(&http.HandlerConfig{
//	    Verifier:      verifier,
//	    CORS:          http.DefaultCORSConfig(),
//	    MaxUploadSize: 100 << 20,
//	}, service)
//	srv := &stdhttp.Server{Addr: ":3118", Handler: handler.Router()}
//
// Reads are public.
//
// # Errors
//
// Errors are plain text. HandleError maps the nosdav sentinel errors to status
// codes: authentication failures to 401, namespace policy failures to 403,
// missing files to 404, oversized uploads to 413 and storage failures to 500.
package http
