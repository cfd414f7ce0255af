package corpus

import (
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/askweb/tools/web_cache"
	"go.uber.org/zap"
)

// LoadDir reads every page file under dir, recursively. Files that cannot be
// read or yield no text are skipped; a missing directory yields no documents.
func LoadDir(dir string, logger *zap.Logger) []Document {
	if logger == nil {
		logger = zap.NewNop()
	}
	var paths []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && web_cache.IsPage(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		doc, err := loadFile(path)
		if err != nil {
			logger.Debug("skip unreadable page", zap.String("path", path), zap.Error(err))
			continue
		}
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func loadFile(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	body := string(raw)
	if strings.EqualFold(filepath.Ext(path), ".mhtml") {
		if body, err = readMHTML(raw); err != nil {
			return Document{}, err
		}
	}
	title, text := ExtractText(body, &url.URL{Scheme: "file", Path: filepath.ToSlash(path)})
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Document{Path: path, Title: title, Text: text}, nil
}
