package ledger

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/rshade/uploadwiz/internal/upload"
)

// Entry records one stashed payload.
type Entry struct {
	// Key is the object key inside Bucket.
	Key string `json:"key"`

	Bucket      string        `json:"bucket"`
	ETag        string        `json:"etag,omitempty"`
	Digest      digest.Digest `json:"digest"`
	ContentType string        `json:"content_type,omitempty"`
	Size        int64         `json:"size"`

	// ItemID and Source identify the upload the payload came from.
	ItemID string `json:"item_id"`
	Source string `json:"source"`

	Deed upload.Deed `json:"deed"`

	// StashedAt is when the transfer finished.
	StashedAt time.Time `json:"stashed_at"`

	// ExpiresAt is when the store may discard the stash.
	ExpiresAt time.Time `json:"expires_at"`
}

// NewEntry builds an entry from a stashed item.
func NewEntry(item *upload.Item) (*Entry, error) {
	r := item.Receipt()
	if r == nil {
		return nil, ErrNoReceipt
	}
	return &Entry{
		Key:         r.Key,
		Bucket:      r.Bucket,
		ETag:        r.ETag,
		Digest:      digest.Digest(r.Digest),
		ContentType: r.ContentType,
		Size:        r.Size,
		ItemID:      item.ID,
		Source:      item.Source,
		Deed:        item.Deed(),
		StashedAt:   r.StashedAt,
		ExpiresAt:   r.ExpiresAt,
	}, nil
}

// IsExpired reports whether the stash expiry has passed.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Age returns the time since the payload was stashed.
func (e *Entry) Age() time.Duration {
	return time.Since(e.StashedAt)
}

// TimeUntilExpiration returns the time left before expiry, or 0 once expired.
func (e *Entry) TimeUntilExpiration() time.Duration {
	remaining := time.Until(e.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarshalJSON writes times as RFC3339.
func (e *Entry) MarshalJSON() ([]byte, error) {
	type Alias Entry
	return json.Marshal(&struct {
		*Alias

		StashedAt string `json:"stashed_at"`
		ExpiresAt string `json:"expires_at"`
	}{
		Alias:     (*Alias)(e),
		StashedAt: e.StashedAt.Format(time.RFC3339),
		ExpiresAt: e.ExpiresAt.Format(time.RFC3339),
	})
}

// UnmarshalJSON parses RFC3339 times.
func (e *Entry) UnmarshalJSON(data []byte) error {
	if e == nil {
		return errors.New("cannot unmarshal into nil Entry")
	}
	type Alias Entry
	aux := &struct {
		*Alias

		StashedAt string `json:"stashed_at"`
		ExpiresAt string `json:"expires_at"`
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	e.StashedAt, err = time.Parse(time.RFC3339, aux.StashedAt)
	if err != nil {
		return err
	}
	e.ExpiresAt, err = time.Parse(time.RFC3339, aux.ExpiresAt)
	return err
}
