// Package supabase archives raw worker artifacts to Supabase storage.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"time"

	"github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"

	"profilescraper/internal/logger"
)

type Config struct {
	URL        string
	ServiceKey string
	Bucket     string
	// Prefix is the folder inside the bucket, "artifacts" when empty.
	Prefix string
}

// Enabled reports whether every setting needed for uploads is present.
func (c Config) Enabled() bool {
	return c.URL != "" && c.ServiceKey != "" && c.Bucket != ""
}

type Archiver struct {
	client *supabase.Client
	cfg    Config
	now    func() time.Time
	log    *logger.Logger
}

func NewArchiver(cfg Config) (*Archiver, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("supabase archive requires NEXT_PUBLIC_SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY and SUPABASE_STORAGE_BUCKET")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "artifacts"
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}
	return &Archiver{client: client, cfg: cfg, now: time.Now, log: logger.New("Archive")}, nil
}

// ObjectPath is where an artifact named name is stored when archived at t.
func (a *Archiver) ObjectPath(name string, t time.Time) string {
	return path.Join(a.cfg.Prefix, t.UTC().Format("20060102T150405Z")+"-"+filepath.Base(name))
}

// Archive uploads data under a timestamped object name.
func (a *Archiver) Archive(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectPath := a.ObjectPath(name, a.now())
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if _, err := a.client.Storage.UploadFile(a.cfg.Bucket, objectPath, bytes.NewReader(data), storage_go.FileOptions{ContentType: &mimeType}); err != nil {
		return fmt.Errorf("uploading %s to bucket %s: %w", objectPath, a.cfg.Bucket, err)
	}
	a.log.LogDebugf("archived %s (%d bytes)", objectPath, len(data))
	return nil
}
