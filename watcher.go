package main

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// calculateFileHash returns the MD5 hash of a file
func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %v", err)
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to calculate hash: %v", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// watcher keeps the env export file in sync with hand edits to the backup
// file. It polls by content hash: mtime alone is unreliable on the container
// filesystems this runs on.
type watcher struct {
	store    *Store
	notifier *Notifier
	lastHash string
}

// check runs one poll cycle. On a changed backup file it reloads the config
// and rewrites both artifacts; on a malformed edit it keeps the last good
// in-memory state and alerts the operator instead.
func (w *watcher) check() {
	backupPath := w.store.BackupPath()

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return
	}
	hash, err := calculateFileHash(backupPath)
	if err != nil {
		log.Printf("Warning: %v", err)
		return
	}
	if hash == w.lastHash {
		return
	}

	log.Printf("Backup file changed (hash: %s), reloading", hash[:8])
	if _, err := w.store.Load(); err != nil {
		log.Printf("Failed to reload config: %v", err)
		w.notifier.NotifyError("redditmon: backup file edit is not valid JSON, keeping last good config", err)
		// Remember the bad content so the same edit isn't re-reported every tick.
		w.lastHash = hash
		return
	}
	if err := w.store.Save(); err != nil {
		log.Printf("Failed to persist bot data: %v", err)
		w.notifier.NotifyError("redditmon: failed to persist bot data", err)
		return
	}
	// Saving re-pretty-prints the backup; re-hash so our own write doesn't
	// trigger another reload.
	if hash, err := calculateFileHash(backupPath); err == nil {
		w.lastHash = hash
	}
	log.Printf("Regenerated %s", w.store.ExportPath())
}

// watchBackupFile polls the backup file until interrupted. Blocks.
func watchBackupFile(store *Store, notifier *Notifier, interval time.Duration) {
	w := &watcher{store: store, notifier: notifier}
	if hash, err := calculateFileHash(store.BackupPath()); err == nil {
		w.lastHash = hash
	}
	log.Printf("Watching %s for changes (every %s)", store.BackupPath(), interval)

	exitCh := make(chan os.Signal, 1)
	signal.Notify(exitCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-exitCh:
			log.Println("Stopping watcher...")
			return
		}
	}
}
