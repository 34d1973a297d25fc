// Package ledger keeps a local record of stashed payloads.
//
// Every item that reaches the Thanks stage leaves one JSON file describing
// where its payload was stashed and when the stash expires. Key features:
//   - File-based storage in ~/.uploadwiz/ledger/ (one file per object key)
//   - Expiry carried from the stash receipt, so `stash list` can show what is
//     about to be discarded by the store
//   - CleanupExpired for `stash prune`
package ledger
