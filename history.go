package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

const historyFileName = "history.bolt"

var mentionsBucket = []byte("mentions")

// Mention is one recorded keyword match: a Reddit post, a comment, or a
// context comment captured around a match. The fields mirror the export
// columns exactly.
type Mention struct {
	ItemID       string    `json:"item_id"`
	Date         time.Time `json:"date"`
	Type         string    `json:"type"` // "post", "comment" or "context_comment"
	Subreddit    string    `json:"subreddit"`
	Author       string    `json:"author"`
	Title        string    `json:"title,omitempty"`
	Content      string    `json:"content,omitempty"`
	Keyword      string    `json:"keyword_matched"`
	URL          string    `json:"url"`
	Upvotes      int       `json:"upvotes"`
	CommentCount int       `json:"comment_count"`
	ParentPostID string    `json:"parent_post_id,omitempty"`
}

// History is the durable mention store, a Bolt database next to the config
// backup. Keys are "<RFC3339Nano date>/<item id>" so iteration order is
// chronological.
type History struct {
	db *bolt.DB
}

func OpenHistory(dataDir string) (*History, error) {
	path := filepath.Join(dataDir, historyFileName)
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %v", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(mentionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %v", err)
	}
	return &History{db: db}, nil
}

func (h *History) Close() error { return h.db.Close() }

func mentionKey(m Mention) []byte {
	return []byte(m.Date.UTC().Format(time.RFC3339Nano) + "/" + m.ItemID)
}

// Append records a mention. Re-appending the same item at the same time
// overwrites it, so the store stays idempotent for replayed matches.
func (h *History) Append(m Mention) error {
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mention: %v", err)
	}
	return h.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(mentionsBucket).Put(mentionKey(m), value)
	})
}

// All returns every recorded mention in chronological order.
func (h *History) All() ([]Mention, error) {
	var out []Mention
	err := h.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(mentionsBucket).ForEach(func(k, v []byte) error {
			var m Mention
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("corrupt history record %q: %v", k, err)
			}
			out = append(out, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Len reports the number of recorded mentions.
func (h *History) Len() (int, error) {
	var n int
	err := h.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(mentionsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Prune drops the oldest records once the history has grown past max, leaving
// the newest keep records. Below the high-water mark it does nothing, so
// routine runs are cheap. Returns the number of records removed.
func (h *History) Prune(max, keep int) (int, error) {
	removed := 0
	err := h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(mentionsBucket)
		n := b.Stats().KeyN
		if n <= max {
			return nil
		}
		drop := n - keep
		c := b.Cursor()
		for k, _ := c.First(); k != nil && removed < drop; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
