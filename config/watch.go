package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 监听配置文件变更，重新加载成功后回调。
// 监听所在目录而非文件本身，编辑器的 rename 写入也能捕获。
type Watcher struct {
	Path     string
	Debounce time.Duration
	Log      *zap.Logger
}

// Start blocks until ctx is done; callback receives latest valid config on change.
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.Debounce <= 0 {
		w.Debounce = 200 * time.Millisecond
	}
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.Path)
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// 合并短时间内的多次写入
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.Debounce)
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			cfg, err := LoadWithEnvOverrides(abs)
			if err != nil {
				log.Warn("配置重载失败，保留旧配置", zap.String("path", abs), zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("path", abs))
			if onUpdate != nil {
				onUpdate(cfg)
			}
		}
	}
}

// Watch 是 Watcher{Path: path}.Start 的简写。
func Watch(ctx context.Context, path string, log *zap.Logger, onUpdate func(AppConfig)) error {
	return Watcher{Path: path, Log: log}.Start(ctx, onUpdate)
}
