// Package quetzalclient provides the primary entry point for constructing a
// Quetzal API client that implements the quetzal.Client interface.
//
// It layers configuration, HTTP transport, authentication, and retries on top
// of the resource interfaces and types defined in the quetzal package.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/quetzal-org/quetzal-client/pkg/quetzal"
//	  "github.com/quetzal-org/quetzal-client/pkg/quetzalclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // With an access token you already have:
//	  cli, err := quetzalclient.NewWithToken(ctx, "https://quetzal.example.com/api/v1", "eyJhbGciOi...")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with a username and password. The token is requested on the
//	  // first call and renewed whenever the API answers 401.
//	  cli, err = quetzalclient.New(ctx, &quetzal.Config{
//	    URL:      "quetzal.example.com/api/v1", // https:// is added
//	    Username: "alice",
//	    Password: "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  ws, err := cli.Workspaces().GetByName(ctx, "my-workspace", "")
//	  if err != nil { log.Fatal(err) }
//	  _ = ws
//	}
//
// Retries
//
// Calls failing with a retryable error are sent again up to three times with
// exponential backoff. 400, 403, 404, 412 and 500 responses are returned at
// once.
//
// Notifications
//
// Set Config.Notifier to a notifier from NewNATSNotifier to publish every
// workspace status change seen while waiting.
package quetzalclient
