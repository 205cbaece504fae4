package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

const summaryFilePrefix = "sync-"

// ErrNoSummary is returned when a reports directory holds no sync summary.
var ErrNoSummary = errors.New("no sync summary found")

// ReportStore persists sync summaries so they can be inspected after the run.
type ReportStore interface {
	SaveSummary(dir string, summary m.Summary) (string, error)
	LoadLatest(dir string) (m.Summary, error)
}

// YAMLReportStore writes one YAML file per sync.
type YAMLReportStore struct{}

// NewReportStore constructs a YAMLReportStore.
func NewReportStore() *YAMLReportStore {
	return &YAMLReportStore{}
}

// SaveSummary implements ReportStore and returns the written path.
func (s *YAMLReportStore) SaveSummary(dir string, summary m.Summary) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	data, err := yaml.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	path := filepath.Join(dir, summaryFilePrefix+summary.SyncID+".yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	slog.Debug("saved sync summary", "path", path, "submissions", len(summary.Submissions))

	return path, nil
}

// LoadLatest implements ReportStore. The most recently modified summary wins.
func (s *YAMLReportStore) LoadLatest(dir string) (m.Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m.Summary{}, ErrNoSummary
		}

		return m.Summary{}, fmt.Errorf("read reports dir: %w", err)
	}

	var (
		latestPath string
		latestInfo os.FileInfo
	)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, summaryFilePrefix) || filepath.Ext(name) != ".yaml" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			slog.Warn("failed to stat summary", "name", name, "error", err)
			continue
		}

		if latestInfo == nil || info.ModTime().After(latestInfo.ModTime()) {
			latestPath = filepath.Join(dir, name)
			latestInfo = info
		}
	}

	if latestPath == "" {
		return m.Summary{}, ErrNoSummary
	}

	data, err := os.ReadFile(latestPath)
	if err != nil {
		return m.Summary{}, fmt.Errorf("read summary: %w", err)
	}

	var summary m.Summary
	if err := yaml.Unmarshal(data, &summary); err != nil {
		return m.Summary{}, fmt.Errorf("decode summary %s: %w", latestPath, err)
	}

	return summary, nil
}
