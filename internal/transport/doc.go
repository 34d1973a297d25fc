// Package transport stashes upload payloads in object storage.
//
// Handler is the per-item operation the batch scheduler drives. Each Submit
// acquires a fresh short-lived token, opens the item's source, streams it to a
// Stasher while reporting fractional progress, and settles as complete, as a
// transport failure, or as aborted. Cancellation is cooperative: every
// progress callback re-reads the item's state and aborts the transfer when the
// item has been marked aborted.
//
// Two Stasher backends are provided. S3Stasher performs multipart uploads via
// aws-sdk-go-v2 and MinioStasher streams through minio-go. Both receive
// credentials per call from the token so that a token refresh never requires
// rebuilding a client.
package transport
