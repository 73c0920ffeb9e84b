// Package clientcli provides a client library for nosdav servers.
//
// Uploads are authorized with a signed Nostr event (kind 27235) carried in the
// Authorization header; the event is bound to the request method and URL and
// signed with the profile's secp256k1 secret key. Downloads are public.
// Profiles bind a key to a server and record whether that server is
// multiuser, in which case uploads go under /<pubkey>/ automatically.
//
// # Basic Usage
//
// Generate a key, then upload a file:
//
//	kp, err := clientcli.GenerateKeyPair()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(&clientcli.Config{
//		Endpoint:  "http://localhost:3118",
//		SecretKey: kp.SecretKey,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath:  "./notes.txt",
//		RemotePath: "notes.txt",
//		Namespaced: true, // multiuser servers: writes go to /<pubkey>/notes.txt
//	})
//
// # Profile Configuration
//
// Use profiles to manage multiple server configurations:
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.Lookup("home")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
// Use formatters for human-readable or JSON output:
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli
