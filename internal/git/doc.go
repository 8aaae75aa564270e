// Package git provides the git plumbing used by the storage backends.
//
// It wraps git command execution behind the Client interface:
//   - Object writes (hash-object, mktree, commit-tree)
//   - Ref queries and conditional updates (show-ref, rev-parse, update-ref)
//   - Notes (notes show, add, remove)
//
// MockClient implements Client in memory for unit tests. Repository uses go-git
// for read-only inspection of what the client wrote.
//
// This package should be the only place where git commands are executed.
package git
