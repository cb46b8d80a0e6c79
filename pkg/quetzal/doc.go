// Package quetzal provides types, interfaces, and helpers for working with the
// Quetzal data management API.
//
// # Overview
//
// The quetzal package defines the domain types (Workspace, File, Query) and
// the interfaces of the resource clients (WorkspacesClient, FilesClient,
// QueriesClient). The concrete implementation lives in the quetzalclient
// package, which wires configuration, transport, authentication, and retries.
//
// Getting a client
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
//	  cli, err := quetzalclient.New(ctx, &quetzal.Config{
//	    URL:      "https://quetzal.example.com/api/v1",
//	    Username: "alice",
//	    Password: "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  workspaces, total, err := cli.Workspaces().List(ctx, &quetzal.WorkspaceListOptions{Owner: "alice"})
//	  if err != nil { log.Fatal(err) }
//	  _, _ = workspaces, total
//	}
//
// # Long-running operations
//
// Workspace creation, commit, scan, and deletion return as soon as the server
// accepts them. WorkspacesClient.WaitWhile polls the workspace until it leaves
// a transient status:
//
//	ws, err := cli.Workspaces().Commit(ctx, ws.ID)
//	if err != nil { /* handle error */ }
//	ws, err = cli.Workspaces().WaitWhile(ctx, ws.ID, quetzal.WorkspaceStatusCommitting, nil)
//
// # Pagination
//
// List endpoints return a Page. Collect gathers items up to a limit and
// PaginationIterator walks them one at a time.
//
// # Errors
//
// Failed calls return an *APIError carrying the RFC 7807 problem document of
// the response and a Kind. Helpers such as IsNotFound and IsForbidden, and
// errors.Is against ErrNotFound and friends, branch on common cases.
package quetzal
