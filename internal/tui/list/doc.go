// Package listview provides a scrolling window over a list of rows for Bubble
// Tea views. Only the rows inside the window are rendered, so a batch with
// thousands of items draws as fast as one with ten.
package listview
