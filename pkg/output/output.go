package output

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/manifest/render"
)

const DefaultDir = "generated"

// Writer places rendered artifacts into one output directory, replacing earlier runs.
type Writer struct {
	fs  afero.Fs
	dir string
	log logger.Logger
}

func NewWriter(fs afero.Fs, dir string, log logger.Logger) *Writer {
	if dir == "" {
		dir = DefaultDir
	}
	return &Writer{fs: fs, dir: dir, log: log}
}

func (w *Writer) Dir() string {
	return w.dir
}

// placement is one target of a Write: a staged file moved into place, or (tmp empty) an
// earlier file that has to go away.
type placement struct {
	name, tmp, target, backup string
	placed                    bool
}

// Write stages every artifact in a temp file, then moves them into place with the manifest
// last. Files of an earlier run are kept as backups until every rename succeeded; on failure
// the new files are removed and the backups restored, so the directory holds either the
// previous run or the complete new one. A stale env file of an earlier separate run is
// removed when a is embedded.
func (w *Writer) Write(ctx context.Context, a render.Artifacts) ([]string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return nil, &render.RenderError{Artifact: w.dir, Err: errors.Wrapf(err, "failed to create output directory")}
	}

	files := a.Files()
	steps := make([]*placement, 0, len(files)+1)
	if a.EnvFile == nil {
		steps = append(steps, &placement{name: render.EnvFileName, target: filepath.Join(w.dir, render.EnvFileName)})
	}
	// env file before the manifest that references it
	for i := len(files) - 1; i >= 0; i-- {
		steps = append(steps, &placement{name: files[i].Name, target: filepath.Join(w.dir, files[i].Name)})
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			w.rollback(ctx, steps)
			return nil, err
		}
		tmp, err := w.stage(f)
		if err != nil {
			w.rollback(ctx, steps)
			return nil, &render.RenderError{Artifact: f.Name, Err: err}
		}
		for _, step := range steps {
			if step.name == f.Name {
				step.tmp = tmp
			}
		}
	}

	for _, step := range steps {
		if err := w.place(step); err != nil {
			w.rollback(ctx, steps)
			return nil, &render.RenderError{Artifact: step.name, Err: err}
		}
	}

	for _, step := range steps {
		if step.backup == "" {
			continue
		}
		if err := w.fs.Remove(step.backup); err != nil {
			w.log.Warn(ctx, "failed to remove backup %s: %v", step.backup, err)
		}
		if step.tmp == "" {
			w.log.Info(ctx, "removed %s left by an earlier run", step.target)
		}
	}
	written := make([]string, 0, len(files))
	for _, f := range files {
		target := filepath.Join(w.dir, f.Name)
		w.log.Debug(ctx, "wrote %s", target)
		written = append(written, target)
	}
	return written, nil
}

// place moves an existing target aside, then renames the staged file over it.
func (w *Writer) place(step *placement) error {
	exists, err := afero.Exists(w.fs, step.target)
	if err != nil {
		return errors.Wrapf(err, "failed to check %s", step.target)
	}
	if exists {
		backup := filepath.Join(w.dir, "."+step.name+".bak")
		if err := w.fs.Rename(step.target, backup); err != nil {
			return errors.Wrapf(err, "failed to back up the previous file")
		}
		step.backup = backup
	}
	if step.tmp == "" {
		return nil
	}
	if err := w.fs.Rename(step.tmp, step.target); err != nil {
		return errors.Wrapf(err, "failed to move into place")
	}
	step.placed = true
	return nil
}

func (w *Writer) rollback(ctx context.Context, steps []*placement) {
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.placed {
			_ = w.fs.Remove(step.target)
		} else if step.tmp != "" {
			_ = w.fs.Remove(step.tmp)
		}
		if step.backup != "" {
			if err := w.fs.Rename(step.backup, step.target); err != nil {
				w.log.Error(ctx, "failed to restore %s from %s: %v", step.target, step.backup, err)
			}
		}
	}
}

func (w *Writer) stage(f render.File) (string, error) {
	tmp, err := afero.TempFile(w.fs, w.dir, "."+f.Name+".*.tmp")
	if err != nil {
		return "", errors.Wrapf(err, "failed to create temp file")
	}
	if _, err := tmp.Write(f.Content); err != nil {
		_ = tmp.Close()
		_ = w.fs.Remove(tmp.Name())
		return "", errors.Wrapf(err, "failed to write")
	}
	if err := tmp.Close(); err != nil {
		_ = w.fs.Remove(tmp.Name())
		return "", errors.Wrapf(err, "failed to close")
	}
	return tmp.Name(), nil
}
