package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	"github.com/nimburion/recordlock/pkg/security"
)

// FileSource loads lock policies from the locking.policies section of a
// config file. The file is read again on every Load.
type FileSource struct {
	path string
	log  logger.Logger
}

// NewFileSource returns a policy source backed by the config file at path.
func NewFileSource(path string, log logger.Logger) (*FileSource, error) {
	if err := security.ValidateFilePath(path, ""); err != nil {
		return nil, fmt.Errorf("policy file %q: %w", path, err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &FileSource{
		path: filepath.Clean(path),
		log:  log.With("component", "policy-file"),
	}, nil
}

// Path returns the watched file.
func (s *FileSource) Path() string {
	return s.path
}

// Load implements locking.PolicySource.
func (s *FileSource) Load(ctx context.Context) ([]locking.Policy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", s.path, err)
	}

	var section LockingConfig
	if err := v.UnmarshalKey("locking", &section); err != nil {
		return nil, fmt.Errorf("failed to decode locking.policies in %s: %w", s.path, err)
	}
	return section.LockPolicies(), nil
}

// Watch calls onChange until ctx is cancelled whenever the file is written
// or recreated, or the file it resolves to through symlinks changes. The
// parent directory is watched, so saves through rename and Kubernetes
// ConfigMap updates, which swap a "..data" symlink, are both seen.
func (s *FileSource) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target, _ := filepath.EvalSymlinks(s.path)
	s.log.Info("watching policy file", "path", s.path, "target", target)

	const changeOps = fsnotify.Write | fsnotify.Create
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			resolved, _ := filepath.EvalSymlinks(s.path)
			written := filepath.Clean(event.Name) == s.path && event.Op&changeOps != 0
			swapped := resolved != "" && resolved != target
			if !written && !swapped {
				continue
			}
			target = resolved
			s.log.Debug("policy file changed", "path", s.path, "target", target, "op", event.Op.String())
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("policy file watcher error", "path", s.path, "error", err)
		}
	}
}
