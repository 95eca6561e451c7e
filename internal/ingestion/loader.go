package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"wallet-risk-lab/internal/domain"
)

// depositsPath is the top-level key holding the deposit array.
const depositsPath = "deposits"

// FileSource reads deposit documents from JSON files.
type FileSource struct {
	paths  []string
	logger logrus.FieldLogger
}

// NewFileSource creates a source over the given file paths.
// Paths are read in the order given.
func NewFileSource(paths []string, logger logrus.FieldLogger) *FileSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FileSource{paths: paths, logger: logger}
}

var _ DepositSource = (*FileSource)(nil)

// Fetch reads every file and concatenates their deposits.
func (s *FileSource) Fetch(ctx context.Context) ([]domain.RawDeposit, error) {
	var all []domain.RawDeposit
	for _, path := range s.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		deposits, err := ParseDocument(path, data)
		if err != nil {
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{
			"file":     path,
			"deposits": len(deposits),
		}).Debug("loaded deposit document")

		all = append(all, deposits...)
	}

	if len(all) == 0 {
		return nil, domain.ErrNoDeposits
	}
	return all, nil
}

// ParseDocument extracts the deposits array from one JSON document.
// Each element must be a JSON object; its text is kept unparsed.
func ParseDocument(source string, data []byte) ([]domain.RawDeposit, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: %w", source, domain.ErrInvalidDocument)
	}

	arr := gjson.GetBytes(data, depositsPath)
	if !arr.Exists() {
		return nil, fmt.Errorf("%s: %q: %w", source, depositsPath, domain.ErrMissingField)
	}
	if !arr.IsArray() {
		return nil, fmt.Errorf("%s: %q is not an array: %w", source, depositsPath, domain.ErrInvalidDocument)
	}

	items := arr.Array()
	deposits := make([]domain.RawDeposit, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("%s: deposit %d is not an object: %w", source, i, domain.ErrInvalidDocument)
		}
		deposits = append(deposits, domain.RawDeposit{
			Raw:    item.Raw,
			Source: source,
			Index:  i,
		})
	}
	return deposits, nil
}

// ExpandPaths resolves glob patterns. Each pattern's matches are sorted
// lexically; patterns keep their relative order. A pattern with no glob
// metacharacters is returned as is, so a missing file surfaces on read.
func ExpandPaths(patterns []string) ([]string, error) {
	var paths []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", p, err)
		}
		if len(matches) == 0 {
			paths = append(paths, p)
			continue
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}

// LoadFiles expands path patterns and reads every matching document.
func LoadFiles(ctx context.Context, patterns []string, logger logrus.FieldLogger) ([]domain.RawDeposit, error) {
	paths, err := ExpandPaths(patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, domain.ErrNoDeposits
	}
	return NewFileSource(paths, logger).Fetch(ctx)
}
