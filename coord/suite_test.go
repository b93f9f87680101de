package coord

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storePair 返回同一个后端上的两个独立会话
type storePair func(t *testing.T) (a, b Store)

// runStoreSuite 各后端共用的语义一致性测试
func runStoreSuite(t *testing.T, open storePair) {
	ctx := context.Background()

	newBase := func(t *testing.T, s Store) string {
		base := "/srvd-test-" + uuid.NewString()
		require.NoError(t, MkdirAll(ctx, s, base))
		return base
	}

	t.Run("MkdirAll 幂等", func(t *testing.T) {
		a, _ := open(t)
		base := newBase(t, a)
		require.NoError(t, MkdirAll(ctx, a, base+"/x/y"))
		require.NoError(t, MkdirAll(ctx, a, base+"/x/y"))

		names, err := a.Children(ctx, base+"/x")
		require.NoError(t, err)
		assert.Equal(t, []string{"y"}, names)
	})

	t.Run("创建与读取", func(t *testing.T) {
		a, b := open(t)
		base := newBase(t, a)

		require.NoError(t, a.Create(ctx, base+"/n1", []byte(`{"port":80}`), Ephemeral))
		data, err := b.Get(ctx, base+"/n1")
		require.NoError(t, err)
		assert.Equal(t, `{"port":80}`, string(data))

		err = a.Create(ctx, base+"/n1", nil, Ephemeral)
		assert.Equal(t, CodeNodeExists, CodeOf(err))

		err = a.Create(ctx, base+"/missing/n", nil, Persistent)
		assert.Equal(t, CodeNoNode, CodeOf(err))

		err = a.Create(ctx, base+"/n1/child", nil, Persistent)
		assert.Equal(t, CodeNoChildrenForEphemerals, CodeOf(err))

		_, err = b.Get(ctx, base+"/absent")
		assert.True(t, IsNoNode(err))
	})

	t.Run("列出子节点", func(t *testing.T) {
		a, b := open(t)
		base := newBase(t, a)
		for _, name := range []string{"c", "a", "b"} {
			require.NoError(t, a.Create(ctx, base+"/"+name, nil, Ephemeral))
		}

		names, err := b.Children(ctx, base)
		require.NoError(t, err)
		sort.Strings(names)
		assert.Equal(t, []string{"a", "b", "c"}, names)

		_, err = b.Children(ctx, base+"/absent")
		assert.True(t, IsNoNode(err))
	})

	t.Run("删除", func(t *testing.T) {
		a, _ := open(t)
		base := newBase(t, a)
		require.NoError(t, a.Create(ctx, base+"/dir", nil, Persistent))
		require.NoError(t, a.Create(ctx, base+"/dir/leaf", nil, Ephemeral))

		assert.Equal(t, CodeNotEmpty, CodeOf(a.Delete(ctx, base+"/dir")))
		require.NoError(t, a.Delete(ctx, base+"/dir/leaf"))
		assert.Equal(t, CodeNoNode, CodeOf(a.Delete(ctx, base+"/dir/leaf")))
		require.NoError(t, a.Delete(ctx, base+"/dir"))
	})

	t.Run("一次性监听", func(t *testing.T) {
		a, b := open(t)
		base := newBase(t, a)

		fired := make(chan WatchEvent, 4)
		names, err := b.ChildrenW(ctx, base, func(ev WatchEvent) { fired <- ev })
		require.NoError(t, err)
		assert.Empty(t, names)

		require.NoError(t, a.Create(ctx, base+"/i1", nil, Ephemeral))
		select {
		case ev := <-fired:
			assert.Equal(t, EventChildrenChanged, ev.Type)
			assert.Equal(t, base, ev.Path)
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not fire")
		}

		require.NoError(t, a.Create(ctx, base+"/i2", nil, Ephemeral))
		select {
		case ev := <-fired:
			t.Fatalf("one-shot watch fired twice: %v", ev.Type)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("数据修改不触发子节点监听", func(t *testing.T) {
		a, b := open(t)
		base := newBase(t, a)
		require.NoError(t, a.Create(ctx, base+"/dir", nil, Persistent))

		fired := make(chan WatchEvent, 4)
		_, err := b.ChildrenW(ctx, base+"/dir", func(ev WatchEvent) { fired <- ev })
		require.NoError(t, err)

		// 兄弟节点的变化不属于 dir 的子节点
		require.NoError(t, a.Create(ctx, base+"/dir-sibling", nil, Persistent))
		require.NoError(t, a.Create(ctx, base+"/dir-sibling/x", nil, Ephemeral))
		select {
		case ev := <-fired:
			t.Fatalf("unexpected watch event: %v", ev.Type)
		case <-time.After(200 * time.Millisecond):
		}

		require.NoError(t, a.Delete(ctx, base+"/dir"))
		select {
		case ev := <-fired:
			assert.Equal(t, EventNodeDeleted, ev.Type)
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not fire on delete")
		}
	})

	t.Run("监听不存在的目录", func(t *testing.T) {
		a, b := open(t)
		base := newBase(t, a)

		_, err := b.ChildrenW(ctx, base+"/absent", func(WatchEvent) {
			t.Error("watch must not be armed on failure")
		})
		assert.True(t, IsNoNode(err))
		require.NoError(t, a.Create(ctx, base+"/absent", nil, Persistent))
		require.NoError(t, a.Create(ctx, base+"/absent/x", nil, Persistent))
		time.Sleep(100 * time.Millisecond)
	})

	t.Run("关闭会话删除临时节点", func(t *testing.T) {
		a, b := open(t)
		base := newBase(t, a)
		require.NoError(t, a.Create(ctx, base+"/gone", nil, Ephemeral))
		require.NoError(t, b.Create(ctx, base+"/kept", nil, Ephemeral))

		fired := make(chan WatchEvent, 4)
		_, err := b.ChildrenW(ctx, base, func(ev WatchEvent) { fired <- ev })
		require.NoError(t, err)

		require.NoError(t, a.Close())
		require.NoError(t, a.Close())
		assert.Equal(t, CodeClosing, CodeOf(a.Create(ctx, base+"/late", nil, Ephemeral)))

		select {
		case ev := <-fired:
			assert.Equal(t, EventChildrenChanged, ev.Type)
		case <-time.After(15 * time.Second):
			t.Fatal("watch did not fire after session close")
		}
		names, err := b.Children(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, []string{"kept"}, names)
	})
}
