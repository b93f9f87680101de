// Package cli 实现 srvctl 命令行：通告、解析、枚举、监听目录，以及启动 HTTP 查询网关。
package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/config"
)

// Execute 运行 srvctl，ctx 取消时（如收到 SIGINT）长时间运行的命令退出
func Execute(ctx context.Context) error {
	return newRootCmd(defaultStoreFactory).ExecuteContext(ctx)
}

// globalFlags 根命令上的持久参数，显式设置时覆盖配置文件与环境变量
type globalFlags struct {
	configFile string
	backend    string
	endpoints  []string
	prefix     string
	logLevel   string
	timeout    time.Duration
}

type root struct {
	flags    globalFlags
	newStore StoreFactory
}

func newRootCmd(newStore StoreFactory) *cobra.Command {
	r := &root{newStore: newStore}

	rootCmd := &cobra.Command{
		Use:   "srvctl",
		Short: "Announce and discover service instances in a coordination store",
		Long: "srvctl announces service instances as ephemeral nodes under /{prefix}/{domain}/{type} " +
			"in etcd or ZooKeeper, resolves and watches service directories, " +
			"and serves a read-mostly HTTP gateway over the same registry.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&r.flags.configFile, "config", "c", "", "config file (default: ./config.yaml or ./config/config.yaml)")
	pf.StringVar(&r.flags.backend, "backend", "", "coordination store: etcd|zookeeper|memory")
	pf.StringSliceVar(&r.flags.endpoints, "endpoints", nil, "store endpoints, comma separated")
	pf.StringVar(&r.flags.prefix, "prefix", "", "root path of the service tree")
	pf.StringVar(&r.flags.logLevel, "log-level", "", "debug|info|warn|error")
	pf.DurationVar(&r.flags.timeout, "timeout", 0, "timeout for one-shot commands")

	rootCmd.AddCommand(
		newVersionCmd(),
		newAnnounceCmd(r),
		newUnannounceCmd(r),
		newResolveCmd(r),
		newPickCmd(r),
		newDomainsCmd(r),
		newTypesCmd(r),
		newWatchCmd(r),
		newServeCmd(r),
		newTokenCmd(r),
	)
	return rootCmd
}

// loadConfig 加载配置文件与环境变量，再应用命令行参数
func (r *root) loadConfig(ctx context.Context) (*AppConfig, error) {
	loader, err := config.New(&config.Config{File: r.flags.configFile},
		config.WithDefaults(defaults()),
		config.WithValidator(validateAppConfig))
	if err != nil {
		return nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, err
	}

	cfg := &AppConfig{}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}

	f := r.flags
	if f.backend != "" {
		cfg.Backend = strings.ToLower(f.backend)
	}
	if len(f.endpoints) > 0 {
		cfg.Etcd.Conn.Endpoints = f.endpoints
		cfg.ZooKeeper.Servers = f.endpoints
	}
	if f.prefix != "" {
		cfg.Registry.Prefix = f.prefix
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.timeout > 0 {
		cfg.Timeout = f.timeout
	}
	return cfg, nil
}

// withApp 加载配置、装配依赖并执行 fn，结束后释放全部资源。
// 会话建立受 Timeout 约束；fn 拿到的 ctx 只随命令上下文结束。
func (r *root) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	cfg, err := r.loadConfig(ctx)
	if err != nil {
		return err
	}

	wireCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	a, err := wireApp(wireCtx, cfg, r.newStore)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("release resources failed", clog.Error(cerr))
		}
	}()
	return fn(ctx, a)
}

// oneShot 为单次操作附加超时
func oneShot(ctx context.Context, a *app) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.cfg.Timeout)
}
