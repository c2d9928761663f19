package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"legalchat/internal/domain"
)

// FileSaver writes generated documents into a directory without overwriting existing files.
type FileSaver struct {
	dir string
}

func NewFileSaver(dir string) *FileSaver {
	if dir == "" {
		dir = "."
	}
	return &FileSaver{dir: dir}
}

func (s *FileSaver) Save(_ context.Context, doc *domain.GeneratedDocument) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := filepath.Base(strings.TrimSpace(doc.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "document.pdf"
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(s.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(doc.Content); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		return path, nil
	}
}
