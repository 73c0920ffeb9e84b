// Package nosdav provides a blob storage core where holders of a Nostr
// keypair upload and retrieve files inside a namespace derived from their
// public key.
//
// # Key Components
//
//   - CredentialVerifier: decodes a "Nostr <base64 event>" Authorization header
//     and returns the signer's Identity once the event signature verifies
//   - AuthorizeWrite: pure namespace policy deciding whether an Identity may
//     write a path, and where the write lands
//   - Service: applies the policy, writes through FileStorage and records
//     uploads in an UploadRepo
//   - FileStorage: interface for file operations (see the filesystem package)
//   - UploadRepo: interface for the upload ledger (SQLite, PostgreSQL)
//
// # Storage Modes
//
//   - ModeSingleUser: a fixed OwnerSet may write anywhere under the root
//   - ModeMultiUser: every identity writes only to root/<identity>/<file>
//
// # Example Usage
//
//	owners, _ := nosdav.NewOwnerSet(pubkeyHex)
//	service, err := nosdav.NewService(storage, repo, nosdav.ServiceConfig{
//	    Mode:    nosdav.ModeSingleUser,
//	    Owners:  owners,
//	    RootDir: "/data",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	verifier := nosdav.NewCredentialVerifier(eventsig.NewVerifier())
//	identity, err := verifier.Verify(r.Header.Get("Authorization"))
//
//	upload, err := service.Put(ctx, identity, "/notes.txt", body)
//
// See the http package for the HTTP endpoint and the eventsig package for
// BIP-340 signature verification.
package nosdav
