package cardfile

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mikey-austin/kodi_playlists/internal/card"
)

// Load reads a card configuration written in dashboard YAML.
func Load(fs afero.Fs, path string) (card.RawConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return card.RawConfig{}, fmt.Errorf("read card config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML card document. An empty document is an empty config.
func Parse(data []byte) (card.RawConfig, error) {
	doc := map[string]any{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return card.RawConfig{}, fmt.Errorf("parse card config: %w", err)
		}
	}
	return card.DecodeRawConfig(doc)
}

// Save writes cfg as YAML.
func Save(fs afero.Fs, path string, cfg card.RawConfig) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode card config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return afero.WriteFile(fs, path, buf.Bytes(), 0o644)
}

// Watch calls onChange whenever path is written, created or replaced. It
// watches the parent directory so editors that swap files are seen. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, log *zap.Logger, path string, onChange func()) error {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("card config changed", zap.String("path", abs), zap.String("op", event.Op.String()))
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("card config watch error", zap.Error(err))
		}
	}
}
