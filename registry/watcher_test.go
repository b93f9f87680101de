package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDir = "/srv/example.com/http"

func nop() {}

func TestWatchTablePopulate(t *testing.T) {
	w := newWatchTable()

	tok := w.begin(testDir)
	assert.Equal(t, phasePopulating, w.phase(testDir))
	assert.Equal(t, commitKeep, w.commit(testDir, tok, nop))
	assert.Equal(t, phaseWatched, w.phase(testDir))

	// 已提交的监听触发后进入刷新
	assert.True(t, w.fire(testDir, tok))
	assert.Equal(t, phaseRefreshing, w.phase(testDir))
	// 同一 token 不会重复启动刷新
	assert.False(t, w.fire(testDir, tok))
}

func TestWatchTableFireDuringPopulate(t *testing.T) {
	w := newWatchTable()

	tok := w.begin(testDir)
	assert.False(t, w.fire(testDir, tok))
	assert.Equal(t, commitRefresh, w.commit(testDir, tok, nop))
	assert.Equal(t, phaseRefreshing, w.phase(testDir))
}

func TestWatchTableRevokeDuringPopulate(t *testing.T) {
	w := newWatchTable()

	tok := w.begin(testDir)
	assert.False(t, w.revoke(testDir, tok))
	assert.Equal(t, commitDrop, w.commit(testDir, tok, nop))
	assert.Equal(t, watchPhase(0), w.phase(testDir))
}

func TestWatchTableSupersededPopulate(t *testing.T) {
	w := newWatchTable()

	first := w.begin(testDir)
	second := w.begin(testDir)
	assert.NotEqual(t, first, second)

	// 被取代的监听回调被忽略
	assert.False(t, w.fire(testDir, first))
	assert.False(t, w.revoke(testDir, first))
	assert.Equal(t, commitStale, w.commit(testDir, first, nop))
	assert.Equal(t, commitKeep, w.commit(testDir, second, nop))
}

func TestWatchTableRefreshCycle(t *testing.T) {
	w := newWatchTable()

	tok := w.begin(testDir)
	w.commit(testDir, tok, nop)
	require.True(t, w.fire(testDir, tok))

	next, ok := w.rearm(testDir, tok)
	require.True(t, ok)
	assert.NotEqual(t, tok, next)
	assert.False(t, w.apply(testDir, tok, nop))
	assert.True(t, w.apply(testDir, next, nop))

	// 刷新期间新监听触发，需要再刷新一轮
	assert.False(t, w.fire(testDir, next))
	again, revoked := w.finish(testDir, next)
	assert.True(t, again)
	assert.False(t, revoked)

	next2, ok := w.rearm(testDir, next)
	require.True(t, ok)
	again, revoked = w.finish(testDir, next2)
	assert.False(t, again)
	assert.False(t, revoked)
	assert.Equal(t, phaseWatched, w.phase(testDir))
}

func TestWatchTableRevokeDuringRefresh(t *testing.T) {
	w := newWatchTable()

	tok := w.begin(testDir)
	w.commit(testDir, tok, nop)
	w.fire(testDir, tok)
	next, _ := w.rearm(testDir, tok)

	assert.False(t, w.revoke(testDir, next))
	_, revoked := w.finish(testDir, next)
	assert.True(t, revoked)
	assert.Equal(t, watchPhase(0), w.phase(testDir))
}

func TestWatchTableRevokeWatched(t *testing.T) {
	w := newWatchTable()

	tok := w.begin(testDir)
	w.commit(testDir, tok, nop)
	assert.True(t, w.revoke(testDir, tok))
	assert.Equal(t, watchPhase(0), w.phase(testDir))
}

func TestWatchTableRearmRequiresRefreshing(t *testing.T) {
	w := newWatchTable()

	tok := w.begin(testDir)
	_, ok := w.rearm(testDir, tok)
	assert.False(t, ok)

	w.commit(testDir, tok, nop)
	_, ok = w.rearm(testDir, tok)
	assert.False(t, ok)
}

func TestWatchTableDrop(t *testing.T) {
	w := newWatchTable()

	tok := w.begin(testDir)
	assert.False(t, w.drop(testDir, tok+1))
	assert.True(t, w.drop(testDir, tok))
	assert.False(t, w.drop(testDir, tok))

	w.begin(testDir)
	w.begin("/srv/other/http")
	w.reset()
	assert.Equal(t, watchPhase(0), w.phase(testDir))
	assert.Equal(t, watchPhase(0), w.phase("/srv/other/http"))
}

// TestWatchTableCommitStoresOnlyCurrent 被取代的读取不写缓存
func TestWatchTableCommitStoresOnlyCurrent(t *testing.T) {
	w := newWatchTable()
	var stored []string
	store := func(name string) func() { return func() { stored = append(stored, name) } }

	first := w.begin(testDir)
	second := w.begin(testDir)
	assert.Equal(t, commitKeep, w.commit(testDir, second, store("second")))
	assert.Equal(t, commitStale, w.commit(testDir, first, store("first")))
	assert.Equal(t, []string{"second"}, stored)

	// 撤销的监听同样不写缓存
	third := w.begin(testDir)
	w.revoke(testDir, third)
	assert.Equal(t, commitDrop, w.commit(testDir, third, store("third")))
	assert.Equal(t, []string{"second"}, stored)

	// 读取期间触发的监听仍写缓存，随后刷新
	fourth := w.begin(testDir)
	w.fire(testDir, fourth)
	assert.Equal(t, commitRefresh, w.commit(testDir, fourth, store("fourth")))
	assert.Equal(t, []string{"second", "fourth"}, stored)
}

func TestWatchTableEvicted(t *testing.T) {
	w := newWatchTable()
	cached := map[string]bool{}
	has := func(p string) bool { return cached[p] }

	// 未完成读取的目录不受淘汰通知影响
	tok := w.begin(testDir)
	assert.False(t, w.evicted(testDir, has))

	w.commit(testDir, tok, nop)
	// 淘汰通知到达前目录已被重新写入缓存
	cached[testDir] = true
	assert.False(t, w.evicted(testDir, has))

	cached[testDir] = false
	assert.True(t, w.evicted(testDir, has))
	assert.Equal(t, watchPhase(0), w.phase(testDir))
	assert.Equal(t, 0, w.size())
	assert.False(t, w.fire(testDir, tok))
}
