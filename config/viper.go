package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/xerrors"
)

// loader 实现 Loader 接口
type loader struct {
	v      *viper.Viper
	cfg    *Config
	opts   *options
	logger clog.Logger

	mu        sync.Mutex
	watches   map[string][]chan Event
	oldValues map[string]any
}

func newLoader(cfg *Config, opts *options) *loader {
	return &loader{
		v:         viper.New(),
		cfg:       cfg,
		opts:      opts,
		logger:    opts.logger,
		watches:   make(map[string][]chan Event),
		oldValues: make(map[string]any),
	}
}

// Load 初始化并从所有来源加载配置
func (l *loader) Load(ctx context.Context) error {
	for k, v := range l.opts.defaults {
		l.v.SetDefault(k, v)
	}

	// 环境变量优先级最高，先设置
	l.v.SetEnvPrefix(l.cfg.EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// .env 只补充尚未设置的环境变量
	l.loadDotEnv()

	if l.cfg.File != "" {
		l.v.SetConfigFile(l.cfg.File)
	} else {
		l.v.SetConfigName(l.cfg.Name)
		l.v.SetConfigType(l.cfg.FileType)
		for _, path := range l.cfg.Paths {
			l.v.AddConfigPath(path)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			l.logger.DebugContext(ctx, "no config file found, using env and defaults",
				clog.Strings("paths", l.cfg.Paths))
		case errors.Is(err, fs.ErrNotExist):
			return xerrors.Wrapf(ErrFileNotFound, "%s", l.cfg.File)
		default:
			return xerrors.Wrapf(err, "read config file")
		}
	}

	if err := l.mergeEnvironmentConfig(ctx); err != nil {
		return err
	}

	if err := l.Validate(); err != nil {
		return err
	}

	if l.v.ConfigFileUsed() != "" {
		l.logger.InfoContext(ctx, "config loaded", clog.String("file", l.v.ConfigFileUsed()))
		l.v.OnConfigChange(func(e fsnotify.Event) {
			if err := l.mergeEnvironmentConfig(context.Background()); err != nil {
				l.logger.Warn("reload environment config failed", clog.Error(err))
			}
			l.notifyWatches()
		})
		l.v.WatchConfig()
	}
	return nil
}

// loadDotEnv 从工作目录与各搜索路径加载 .env，文件缺失不是错误
func (l *loader) loadDotEnv() {
	candidates := []string{".env"}
	for _, path := range l.cfg.Paths {
		candidates = append(candidates, filepath.Join(path, ".env"))
	}
	if l.cfg.File != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(l.cfg.File), ".env"))
	}
	for _, file := range candidates {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			l.logger.Warn("load .env failed", clog.String("file", file), clog.Error(err))
		}
	}
}

// mergeEnvironmentConfig 合并 {name}.{env}{ext}，env 取自 {PREFIX}_ENV
func (l *loader) mergeEnvironmentConfig(ctx context.Context) error {
	env := os.Getenv(l.cfg.EnvPrefix + "_ENV")
	used := l.v.ConfigFileUsed()
	if env == "" || used == "" {
		return nil
	}

	ext := filepath.Ext(used)
	envFile := strings.TrimSuffix(used, ext) + "." + env + ext
	f, err := os.Open(envFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.DebugContext(ctx, "no environment config", clog.String("env", env))
			return nil
		}
		return xerrors.Wrapf(err, "open environment config %s", envFile)
	}
	defer f.Close()

	if err := l.v.MergeConfig(f); err != nil {
		return xerrors.Wrapf(err, "merge environment config %s", envFile)
	}
	l.logger.InfoContext(ctx, "environment config merged", clog.String("file", envFile))
	return nil
}

// Get 根据 key 获取配置值
func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

// Unmarshal 将整个配置反序列化到结构体
func (l *loader) Unmarshal(v any) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey 将特定配置 key 反序列化到结构体
func (l *loader) UnmarshalKey(key string, v any) error {
	return l.v.UnmarshalKey(key, v)
}

func (l *loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch 订阅特定配置 key 的变更
func (l *loader) Watch(ctx context.Context, key string) (<-chan Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Event, 10)
	l.watches[key] = append(l.watches[key], ch)
	l.oldValues[key] = l.v.Get(key)

	go func() {
		<-ctx.Done()
		l.removeWatch(key, ch)
	}()
	return ch, nil
}

func (l *loader) removeWatch(key string, ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chans := l.watches[key]
	for i, c := range chans {
		if c == ch {
			l.watches[key] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(l.watches[key]) == 0 {
		delete(l.watches, key)
		delete(l.oldValues, key)
	}
	close(ch)
}

// Validate 执行 WithValidator 注册的校验
func (l *loader) Validate() error {
	if l.opts.validator == nil {
		return nil
	}
	if err := l.opts.validator(l); err != nil {
		return xerrors.Wrapf(ErrValidationFailed, "%v", err)
	}
	return nil
}

// notifyWatches 对比值变化并通知监听者，通道满时丢弃
func (l *loader) notifyWatches() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, channels := range l.watches {
		newValue := l.v.Get(key)
		oldValue := l.oldValues[key]
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}

		event := Event{
			Key:       key,
			Value:     newValue,
			OldValue:  oldValue,
			Source:    "file",
			Timestamp: time.Now(),
		}
		l.oldValues[key] = newValue

		for _, ch := range channels {
			select {
			case ch <- event:
			default:
				l.logger.Warn("config watch channel full", clog.String("key", key))
			}
		}
	}
}
