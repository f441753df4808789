package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/tabular"
)

// FileSource opens input files from the local disk or from gs:// URIs.
type FileSource struct {
	Storage StorageService
}

// Open reads location into a tabular.File named after its base name.
func (s *FileSource) Open(ctx context.Context, location string) (tabular.File, error) {
	if strings.HasPrefix(location, "gs://") {
		if s.Storage == nil {
			return tabular.File{}, fmt.Errorf("Open: %s: no storage service configured", location)
		}
		data, err := s.Storage.FetchFromGCS(ctx, location)
		if err != nil {
			return tabular.File{}, fmt.Errorf("Open: %w", err)
		}
		return tabular.File{Name: s.Storage.ExtractFilenameFromGCSURI(location), Data: data}, nil
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return tabular.File{}, fmt.Errorf("Open: %w", err)
	}
	return tabular.File{Name: filepath.Base(location), Data: data}, nil
}

// OpenRequest resolves every location of an analysis.
func (s *FileSource) OpenRequest(ctx context.Context, trialBalance, mapping string, gl []string, mode Mode) (Request, error) {
	tb, err := s.Open(ctx, trialBalance)
	if err != nil {
		return Request{}, fmt.Errorf("OpenRequest: trial balance: %w", err)
	}
	mf, err := s.Open(ctx, mapping)
	if err != nil {
		return Request{}, fmt.Errorf("OpenRequest: mapping: %w", err)
	}
	req := Request{TrialBalance: tb, Mapping: mf, Mode: mode}
	for _, loc := range gl {
		f, err := s.Open(ctx, loc)
		if err != nil {
			return Request{}, fmt.Errorf("OpenRequest: gl: %w", err)
		}
		req.GL = append(req.GL, f)
	}
	return req, nil
}
