// Package media manages campaign attachments on local disk. Each upload gets
// a fresh file (append-only area, no concurrent writers to the same path);
// files are deleted only together with their campaign.
package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"mailerbot/internal/store"
	logx "mailerbot/pkg/logx"
)

type Store struct {
	dir string
	log logx.Logger
}

func NewStore(dir string, log logx.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create dir: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{dir: dir, log: log}, nil
}

// NewPath allocates a destination path for one upload.
func (s *Store) NewPath(kind store.MediaKind) string {
	ext := ".bin"
	switch kind {
	case store.MediaPhoto:
		ext = ".jpg"
	case store.MediaVideo:
		ext = ".mp4"
	}
	return filepath.Join(s.dir, uuid.NewString()+ext)
}

// Remove deletes an attachment file, tolerating its absence.
func (s *Store) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed removing media file", logx.String("path", path), logx.Err(err))
		}
		return
	}
	s.log.Info("media file removed", logx.String("path", path))
}
