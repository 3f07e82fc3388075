package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

// Workspace is a private temp directory for one codec run. All files live inside it and are removed
// together by Close.
type Workspace struct {
	dir string
}

// NewWorkspace creates a uniquely named directory below os.TempDir().
func NewWorkspace() (*Workspace, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(os.TempDir(), "pixrelay-"+id.String())
	if err := os.Mkdir(dir, 0o700); err != nil {
		err = fmt.Errorf("error creating workspace %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}

	log.Debug().Str("dir", dir).Msg("created workspace")

	return &Workspace{dir: dir}, nil
}

// Path returns the absolute path of name inside the workspace without creating it.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Write stores data under name and returns its path.
func (w *Workspace) Write(name string, data []byte) (string, error) {
	path := w.Path(name)

	log.Debug().Int("bytes", len(data)).Str("path", path).Msg("writing workspace file")

	if err := os.WriteFile(path, data, 0o600); err != nil {
		err = fmt.Errorf("error writing workspace file %w", err)
		log.Error().Err(err).Send()
		return "", err
	}

	return path, nil
}

// Read returns the content of a file previously written or produced inside the workspace.
func (w *Workspace) Read(name string) ([]byte, error) {
	buf, err := os.ReadFile(w.Path(name))
	if err != nil {
		err = fmt.Errorf("error reading workspace file %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}

	return buf, nil
}

// Close removes the workspace and everything in it, logging failures instead of returning them.
func (w *Workspace) Close() {
	if err := os.RemoveAll(w.dir); err != nil {
		log.Warn().Str("dir", w.dir).Err(err).Msg("could not clean up workspace")
		return
	}
	log.Debug().Str("dir", w.dir).Msg("cleaned up workspace")
}
