// Package media tracks inbound WhatsApp media attachments and retrieves
// their bytes on demand.
//
// Inbound image and document messages are registered here under an opaque
// handle when they arrive; flows that need the payload later (such as offer
// upload) ask the store to download it to disk by handle. Flows never touch
// whatsmeow message protos directly.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow"
)

// Downloader retrieves raw media bytes for a previously received message.
// *whatsapp.Client satisfies this.
type Downloader interface {
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
}

// Result reports the outcome of a download attempt. A failed download is an
// ordinary outcome (media keys expire), so it is carried as data rather than
// aborting the caller.
type Result struct {
	OK       bool
	Path     string
	MimeType string
	Err      string
}

type entry struct {
	msg      whatsmeow.DownloadableMessage
	mimeType string
}

// Store registers inbound media and downloads it to a local directory.
type Store struct {
	downloader Downloader
	baseDir    string

	mu      sync.Mutex
	entries map[string]entry
}

// NewStore creates a media store that writes downloads under baseDir.
func NewStore(downloader Downloader, baseDir string) *Store {
	return &Store{
		downloader: downloader,
		baseDir:    baseDir,
		entries:    make(map[string]entry),
	}
}

// Register records an inbound downloadable message and returns its handle.
func (s *Store) Register(msg whatsmeow.DownloadableMessage, mimeType string) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = entry{msg: msg, mimeType: mimeType}
	s.mu.Unlock()
	slog.Debug("Registered inbound media", "media_id", id, "mime_type", mimeType)
	return id
}

// DownloadAndStore fetches the media behind the handle and writes it to
// folder (relative to the store's base directory). The handle stays
// registered so retries are possible.
func (s *Store) DownloadAndStore(ctx context.Context, mediaID, folder string) Result {
	s.mu.Lock()
	e, ok := s.entries[mediaID]
	s.mu.Unlock()
	if !ok {
		return Result{Err: fmt.Sprintf("unknown media handle %s", mediaID)}
	}

	data, err := s.downloader.Download(ctx, e.msg)
	if err != nil {
		slog.Warn("Media download failed", "media_id", mediaID, "error", err)
		return Result{MimeType: e.mimeType, Err: err.Error()}
	}

	dir := filepath.Join(s.baseDir, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Result{MimeType: e.mimeType, Err: err.Error()}
	}
	path := filepath.Join(dir, mediaID+extensionFor(e.mimeType))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Result{MimeType: e.mimeType, Err: err.Error()}
	}

	slog.Info("Stored inbound media", "media_id", mediaID, "path", path, "bytes", len(data))
	return Result{OK: true, Path: path, MimeType: e.mimeType}
}

// Forget drops a handle once its media is no longer needed.
func (s *Store) Forget(mediaID string) {
	s.mu.Lock()
	delete(s.entries, mediaID)
	s.mu.Unlock()
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(mimeType, "image/png"):
		return ".png"
	case strings.HasPrefix(mimeType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(mimeType, "application/pdf"):
		return ".pdf"
	default:
		return ".bin"
	}
}
