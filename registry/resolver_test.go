package registry

import (
	"context"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/resolver"

	"github.com/ceyewan/srvd/testkit"
)

// fakeClientConn 记录 resolver 推送的状态
type fakeClientConn struct {
	resolver.ClientConn
	states chan resolver.State
	errs   chan error
}

func newFakeClientConn() *fakeClientConn {
	return &fakeClientConn{
		states: make(chan resolver.State, 16),
		errs:   make(chan error, 16),
	}
}

func (f *fakeClientConn) UpdateState(s resolver.State) error {
	f.states <- s
	return nil
}

func (f *fakeClientConn) ReportError(err error) {
	f.errs <- err
}

func addrs(s resolver.State) []string {
	out := make([]string, len(s.Addresses))
	for i, a := range s.Addresses {
		out[i] = a.Addr
	}
	sort.Strings(out)
	return out
}

func buildTarget(t *testing.T, raw string) resolver.Target {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return resolver.Target{URL: *u}
}

func TestGRPCTarget(t *testing.T) {
	assert.Equal(t, "srvd:///example.com/my%20svc", GRPCTarget("example.com", "my svc"))

	domain, service, err := parseTarget(buildTarget(t, GRPCTarget("example.com", "my svc")))
	require.NoError(t, err)
	assert.Equal(t, "example.com", domain)
	assert.Equal(t, "my svc", service)

	for _, bad := range []string{"srvd:///example.com", "srvd:///", "srvd:///a/b/c"} {
		_, _, err := parseTarget(buildTarget(t, bad))
		assert.ErrorIs(t, err, ErrInvalidArgument, bad)
	}
}

func TestResolverBuilderPushesAddresses(t *testing.T) {
	r := newTestRegistry(t, testkit.NewMemoryStore(t), nil)
	ctx := context.Background()

	_, err := r.Announce(ctx, "example.com", "grpc", map[string]any{"host": "10.0.0.1", "port": 9000})
	require.NoError(t, err)
	_, err = r.Announce(ctx, "example.com", "grpc", "10.0.0.2:9000")
	require.NoError(t, err)

	builder := NewResolverBuilder(r)
	assert.Equal(t, DefaultScheme, builder.Scheme())

	cc := newFakeClientConn()
	res, err := builder.Build(buildTarget(t, GRPCTarget("example.com", "grpc")), cc, resolver.BuildOptions{})
	require.NoError(t, err)
	defer res.Close()

	select {
	case s := <-cc.states:
		assert.Equal(t, []string{"10.0.0.1:9000", "10.0.0.2:9000"}, addrs(s))
	case <-time.After(waitFor):
		t.Fatal("no initial state")
	}

	_, err = r.Announce(ctx, "example.com", "grpc", map[string]any{"address": "10.0.0.3:9000"})
	require.NoError(t, err)

	select {
	case s := <-cc.states:
		assert.Equal(t, []string{"10.0.0.1:9000", "10.0.0.2:9000", "10.0.0.3:9000"}, addrs(s))
	case <-time.After(waitFor):
		t.Fatal("no update after announce")
	}

	res.ResolveNow(resolver.ResolveNowOptions{})
	select {
	case s := <-cc.states:
		assert.Len(t, s.Addresses, 3)
	case <-time.After(waitFor):
		t.Fatal("no state after ResolveNow")
	}
}

func TestResolverReportsEmptyDirectory(t *testing.T) {
	r := newTestRegistry(t, testkit.NewMemoryStore(t), nil)

	cc := newFakeClientConn()
	res, err := NewResolverBuilder(r).Build(buildTarget(t, GRPCTarget("example.com", "grpc")), cc, resolver.BuildOptions{})
	require.NoError(t, err)
	defer res.Close()

	select {
	case err := <-cc.errs:
		assert.ErrorIs(t, err, ErrNotFound)
	case <-time.After(waitFor):
		t.Fatal("no error reported")
	}
	assert.Empty(t, cc.states)
}

func TestResolverBuildInvalidTarget(t *testing.T) {
	r := newTestRegistry(t, testkit.NewMemoryStore(t), nil)
	_, err := NewResolverBuilder(r).Build(buildTarget(t, "srvd:///only-domain"), newFakeClientConn(), resolver.BuildOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewGRPCClient(t *testing.T) {
	r := newTestRegistry(t, testkit.NewMemoryStore(t), nil)
	conn, err := NewGRPCClient(r, "example.com", "grpc")
	require.NoError(t, err)
	assert.Equal(t, "srvd:///example.com/grpc", conn.Target())
	require.NoError(t, conn.Close())
}
