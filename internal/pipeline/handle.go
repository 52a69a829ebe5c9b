package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ytsummarize/internal/fileutil"
	"ytsummarize/internal/textutil"
)

// partialPrefix marks run directories that have not been finalized.
const partialPrefix = ".partial-"

// runHandle is the provisional output directory of one run. It is named by
// the source identifier and run id; the title-based name is only applied by
// finalize.
type runHandle struct {
	root string
	dir  string
	id   string
}

func newRunHandle(root, identifier, runID string) (*runHandle, error) {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	dir := filepath.Join(root, partialPrefix+textutil.SanitizeToken(identifier)+"-"+short)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	return &runHandle{root: root, dir: dir, id: short}, nil
}

func (h *runHandle) write(name string, data []byte) error {
	if err := fileutil.WriteFileAtomic(filepath.Join(h.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// maxNameAttempts bounds the "Title (N)" suffixes tried by finalize.
const maxNameAttempts = 100

// errNoFreeName is returned when every candidate name is taken by
// directories the run does not own.
var errNoFreeName = errors.New("no free output directory name")

// finalize moves the run directory to root/name. An existing directory is
// replaced only when owned reports it as an earlier run of the same source;
// otherwise "name (2)", "name (3)" and so on are tried.
func (h *runHandle) finalize(name string, owned func(dir string) bool) (string, error) {
	name = textutil.SanitizeFileName(name)
	if name == "" || strings.HasPrefix(name, partialPrefix) {
		name = "untitled-" + h.id
	}
	for n := 1; n <= maxNameAttempts; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s (%d)", name, n)
		}
		dest := filepath.Join(h.root, candidate)
		_, err := os.Lstat(dest)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return h.moveTo(dest, "")
		case err != nil:
			return "", fmt.Errorf("stat output directory: %w", err)
		case owned(dest):
			return h.moveTo(dest, filepath.Join(h.root, partialPrefix+"previous-"+h.id))
		}
	}
	return "", fmt.Errorf("%w for %q", errNoFreeName, name)
}

// moveTo renames the run directory to dest. When backup is set, the existing
// dest is moved there first and removed once the rename succeeds.
func (h *runHandle) moveTo(dest, backup string) (string, error) {
	if backup != "" {
		if err := os.Rename(dest, backup); err != nil {
			return "", fmt.Errorf("move previous output aside: %w", err)
		}
	}
	if err := os.Rename(h.dir, dest); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dest)
		}
		return "", fmt.Errorf("finalize output directory: %w", err)
	}
	h.dir = dest
	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return dest, fmt.Errorf("remove previous output: %w", err)
		}
	}
	return dest, nil
}

func (h *runHandle) discard() error {
	return os.RemoveAll(h.dir)
}
