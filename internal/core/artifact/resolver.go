// Package artifact locates and decodes the output a worker run produced.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"profilescraper/internal/core/model"
	"profilescraper/internal/logger"
)

// ErrCleanup marks an ArtifactReadError raised after the rows were decoded
// successfully. Rows returned alongside it are valid.
var ErrCleanup = errors.New("artifact cleanup failed")

// Archiver keeps a copy of a raw artifact before it is deleted.
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) error
}

type Resolver struct {
	dir      string
	archiver Archiver
	log      *logger.Logger
}

type Option func(*Resolver)

func WithArchiver(a Archiver) Option {
	return func(r *Resolver) { r.archiver = a }
}

// NewResolver resolves file artifacts relative to dir.
func NewResolver(dir string, opts ...Option) *Resolver {
	r := &Resolver{dir: dir, log: logger.New("ArtifactResolver")}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Path returns where the worker is expected to write the artifact of kind k.
func (r *Resolver) Path(profile string, k Kind) string {
	name := FileName(profile, k)
	if name == "" {
		return ""
	}
	return filepath.Join(r.dir, name)
}

// Resolve decodes the artifact of kind k for profile. stdout is only consulted
// for inline-stream artifacts. File artifacts are deleted once read; if the
// delete fails the decoded rows are returned together with an error wrapping
// ErrCleanup.
func (r *Resolver) Resolve(ctx context.Context, profile string, k Kind, stdout []byte) ([]model.FlatRow, error) {
	if k == KindInlineStream {
		rows := decodeInline(stdout)
		r.log.LogDebugf("decoded %d inline rows for %s", len(rows), profile)
		return rows, nil
	}

	path := r.Path(profile, k)
	if path == "" {
		return nil, model.NewError(model.ErrArtifactRead, fmt.Sprintf("unsupported kind %q", k), nil)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.NewError(model.ErrArtifactMissing, path, nil)
	}
	if err != nil {
		return nil, model.NewError(model.ErrArtifactRead, path, err)
	}

	var rows []model.FlatRow
	switch k {
	case KindDelimitedFile:
		rows, err = decodeDelimited(data)
	case KindSpreadsheetFile:
		rows, err = decodeSpreadsheet(data)
	}
	if err != nil {
		return nil, model.NewError(model.ErrArtifactRead, path, err)
	}
	r.log.LogDebugf("decoded %d rows from %s", len(rows), path)

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, filepath.Base(path), data); err != nil {
			r.log.LogWarnf("archiving %s failed: %v", path, err)
		}
	}

	if err := os.Remove(path); err != nil {
		return rows, model.NewError(model.ErrArtifactRead, path, fmt.Errorf("%w: %w", ErrCleanup, err))
	}
	return rows, nil
}
