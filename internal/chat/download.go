package chat

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSaver writes downloads into a directory.
type FileSaver struct {
	Dir string
}

func NewFileSaver(dir string) *FileSaver {
	if dir == "" {
		dir = "."
	}
	return &FileSaver{Dir: dir}
}

// maxNameAttempts bounds the "name (n).ext" search for a free file name.
const maxNameAttempts = 100

// Save writes data to a temporary file next to the target and links it into
// place, so a partially written document is never visible under its final
// name. The server-suggested name is reduced to its base name; an existing
// file is never replaced, the copy gets a " (n)" suffix instead.
func (f *FileSaver) Save(filename, contentType string, data []byte) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", errors.New("invalid filename")
	}

	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.Dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	for i := 0; i < maxNameAttempts; i++ {
		target := filepath.Join(f.Dir, numbered(name, i))
		err := os.Link(tmpName, target)
		if err == nil {
			return target, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		// filesystems without hard links
		if _, statErr := os.Lstat(target); !errors.Is(statErr, fs.ErrNotExist) {
			continue
		}
		if err := os.Rename(tmpName, target); err != nil {
			return "", fmt.Errorf("move download into place: %w", err)
		}
		return target, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, f.Dir)
}

// numbered returns name for i == 0 and "base (i).ext" otherwise.
func numbered(name string, i int) string {
	if i == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), i, ext)
}
