package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/srvd/auth"
	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/coord"
	"github.com/ceyewan/srvd/metrics"
	"github.com/ceyewan/srvd/registry"
	"github.com/ceyewan/srvd/testkit"
)

// memoryFactory 每次命令执行打开共享内存树上的新会话
func memoryFactory(server *coord.MemoryServer) StoreFactory {
	return func(context.Context, *AppConfig, clog.Logger, metrics.Meter) (coord.Store, func() error, error) {
		store := server.NewStore()
		return store, store.Close, nil
	}
}

func executeCLI(t *testing.T, server *coord.MemoryServer, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd(memoryFactory(server))
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--backend", "memory", "--log-level", "error", "--timeout", "5s"}, args...))
	err := cmd.ExecuteContext(testkit.NewContext(t, 10*time.Second))
	return stdout.String(), stderr.String(), err
}

// seed 在独立会话中通告实例，会话在测试结束时关闭
func seed(t *testing.T, server *coord.MemoryServer, domain, service string, payloads ...string) []string {
	t.Helper()
	store := server.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	reg, err := registry.New(store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	ctx := testkit.NewContext(t, 5*time.Second)
	ids := make([]string, 0, len(payloads))
	for _, p := range payloads {
		id, err := reg.Announce(ctx, domain, service, p)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, coord.NewMemoryServer(), "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", stdout)
}

func TestResolveJSON(t *testing.T) {
	server := coord.NewMemoryServer()
	ids := seed(t, server, "example.com", "http", `{"address":"10.0.0.1:80"}`, `{"address":"10.0.0.2:80"}`)

	stdout, _, err := executeCLI(t, server, "resolve", "example.com", "http", "--json")
	require.NoError(t, err)

	var list []registry.Instance
	require.NoError(t, json.Unmarshal([]byte(stdout), &list))
	got := make([]string, 0, len(list))
	for _, inst := range list {
		got = append(got, inst.ID)
	}
	assert.ElementsMatch(t, ids, got)
}

func TestResolveTable(t *testing.T) {
	server := coord.NewMemoryServer()
	ids := seed(t, server, "example.com", "http", "10.0.0.1:80")

	stdout, _, err := executeCLI(t, server, "resolve", "example.com", "http")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], ids[0])
	assert.Contains(t, lines[1], "10.0.0.1:80")
}

func TestResolveNotFound(t *testing.T) {
	_, _, err := executeCLI(t, coord.NewMemoryServer(), "resolve", "example.com", "http")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestDomainsAndTypes(t *testing.T) {
	server := coord.NewMemoryServer()
	seed(t, server, "b.example", "http", "x")
	seed(t, server, "a.example", "_grpc._tcp/v1", "y")
	seed(t, server, "a.example", "http", "z")

	stdout, _, err := executeCLI(t, server, "domains")
	require.NoError(t, err)
	assert.Equal(t, "a.example\nb.example\n", stdout)

	stdout, _, err = executeCLI(t, server, "types", "a.example", "--json")
	require.NoError(t, err)
	var types []string
	require.NoError(t, json.Unmarshal([]byte(stdout), &types))
	assert.Equal(t, []string{"_grpc._tcp/v1", "http"}, types)

	_, _, err = executeCLI(t, server, "services", "missing.example")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestPick(t *testing.T) {
	server := coord.NewMemoryServer()
	ids := seed(t, server, "example.com", "http", "a", "b", "c")

	stdout, _, err := executeCLI(t, server, "pick", "example.com", "http", "--strategy", "consistent_hash", "--key", "user-1", "--json")
	require.NoError(t, err)
	var inst registry.Instance
	require.NoError(t, json.Unmarshal([]byte(stdout), &inst))
	assert.Contains(t, ids, inst.ID)

	_, _, err = executeCLI(t, server, "pick", "example.com", "http", "--strategy", "fastest")
	assert.Error(t, err)
}

// TestAnnounceWithoutHold 会话随命令结束，实例随之消失
func TestAnnounceWithoutHold(t *testing.T) {
	server := coord.NewMemoryServer()
	observer := server.NewStore()
	t.Cleanup(func() { _ = observer.Close() })

	stdout, _, err := executeCLI(t, server, "announce", "example.com", "http", "--payload", "10.0.0.9:80", "--hold=false")
	require.NoError(t, err)
	id := strings.TrimSpace(stdout)
	require.NotEmpty(t, id)

	children, err := observer.Children(context.Background(), "/srv/example.com/http")
	require.NoError(t, err)
	assert.NotContains(t, children, id)
}

func TestUnannounce(t *testing.T) {
	server := coord.NewMemoryServer()
	ids := seed(t, server, "example.com", "http", "a", "b")

	_, _, err := executeCLI(t, server, "unannounce", "example.com", "http", ids[0])
	require.NoError(t, err)

	_, _, err = executeCLI(t, server, "unannounce", "example.com", "http", ids[0])
	se, ok := registry.AsStoreError(err)
	require.True(t, ok)
	assert.Equal(t, coord.CodeNoNode, se.Code)
}

func TestWatchPrintsSnapshot(t *testing.T) {
	server := coord.NewMemoryServer()
	ids := seed(t, server, "example.com", "http", "a")

	stdout, _, err := executeCLI(t, server, "watch", "example.com", "http", "-n", "1")
	require.NoError(t, err)

	var rec watchRecord
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(stdout)), &rec))
	assert.Equal(t, "example.com", rec.Domain)
	assert.Equal(t, "http", rec.Type)
	require.Len(t, rec.Instances, 1)
	assert.Equal(t, ids[0], rec.Instances[0].ID)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "srvctl.yaml")
	require.NoError(t, os.WriteFile(file, []byte("registry:\n  prefix: /services\n"), 0o644))

	server := coord.NewMemoryServer()
	observer := server.NewStore()
	t.Cleanup(func() { _ = observer.Close() })
	reg, err := registry.New(observer, &registry.Config{Prefix: "/services"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	_, err = reg.Announce(context.Background(), "example.com", "http", "a")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, server, "--config", file, "domains")
	require.NoError(t, err)
	assert.Equal(t, "example.com\n", stdout)

	// 命令行参数优先于配置文件
	_, _, err = executeCLI(t, server, "--config", file, "--prefix", "/srv", "domains")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestConfigRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "srvctl.yaml")
	require.NoError(t, os.WriteFile(file, []byte("backend: consul\n"), 0o644))

	_, _, err := executeCLI(t, coord.NewMemoryServer(), "--config", file, "domains")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestDefaultStoreFactoryMemory(t *testing.T) {
	store, release, err := defaultStoreFactory(context.Background(), &AppConfig{Backend: BackendMemory}, clog.Discard(), metrics.Discard())
	require.NoError(t, err)
	assert.Equal(t, coord.StateConnected, store.State())
	require.NoError(t, release())

	_, _, err = defaultStoreFactory(context.Background(), &AppConfig{Backend: "consul"}, clog.Discard(), metrics.Discard())
	assert.Error(t, err)
}

func TestBreakerEnabled(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "srvctl.yaml")
	require.NoError(t, os.WriteFile(file, []byte("breaker:\n  enabled: true\n  minimum_requests: 5\n"), 0o644))

	server := coord.NewMemoryServer()
	ids := seed(t, server, "example.com", "http", "a")

	stdout, _, err := executeCLI(t, server, "--config", file, "pick", "example.com", "http")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, ids[0]))
}

func TestTokenCommand(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	dir := t.TempDir()
	file := filepath.Join(dir, "srvctl.yaml")
	require.NoError(t, os.WriteFile(file, []byte("auth:\n  secret_key: "+secret+"\n"), 0o644))

	stdout, _, err := executeCLI(t, coord.NewMemoryServer(), "--config", file, "token", "--subject", "deployer")
	require.NoError(t, err)

	authn, err := auth.New(&auth.Config{Enabled: true, SecretKey: secret, Issuer: "srvd"})
	require.NoError(t, err)
	claims, err := authn.ValidateToken(context.Background(), strings.TrimSpace(stdout))
	require.NoError(t, err)
	assert.Equal(t, "deployer", claims.Subject)
	assert.True(t, claims.HasScope(auth.ScopeWrite))

	// 未配置密钥时拒绝签发
	_, _, err = executeCLI(t, coord.NewMemoryServer(), "token", "--subject", "deployer")
	assert.Error(t, err)
}
