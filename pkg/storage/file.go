package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/errors"
)

// fileContext reads slabs from a local directory tree. The location is a
// directory path, resolved under the configured file root when relative.
type fileContext struct {
	root   string
	logger *zap.Logger
}

// newFileContext validates that the target directory exists; a missing
// directory is a construction failure surfaced to the caller.
func newFileContext(location, fileRoot string, logger *zap.Logger) (*fileContext, error) {
	root := location
	if !filepath.IsAbs(root) && fileRoot != "" {
		root = filepath.Join(fileRoot, root)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "file backend directory unavailable")
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrorTypeStorage, "file backend location %q is not a directory", root)
	}

	return &fileContext{
		root: root,
		logger: logger.With(
			zap.String("component", "file_context"),
			zap.String("root", root)),
	}, nil
}

func (f *fileContext) Kind() Kind {
	return KindFile
}

func (f *fileContext) Location() string {
	return f.root
}

func (f *fileContext) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.root, filepath.Clean(path))) //nolint:gosec // G304: path is derived from layer configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "object not found")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "file read failed")
	}
	return data, nil
}

func (f *fileContext) ReadRange(_ context.Context, path string, offset uint64, length uint32) ([]byte, error) {
	file, err := os.Open(filepath.Join(f.root, filepath.Clean(path))) //nolint:gosec // G304: path is derived from layer configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "object not found")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "file open failed")
	}
	defer file.Close()

	buf := make([]byte, length)
	n, err := file.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "file range read failed")
	}
	if n < int(length) {
		// A short read means the requested range runs past the end of the
		// object; returning padded bytes would decode as phantom tiles.
		return nil, errors.Newf(errors.ErrorTypeStorage,
			"range [%d,+%d) extends past the end of the object (%d bytes read)", offset, length, n)
	}
	return buf, nil
}

func (f *fileContext) Close() error {
	return nil
}
