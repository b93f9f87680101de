package registry

import (
	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/srvd/xerrors"
)

// resolutionCache 目录路径到实例列表的有界缓存
type resolutionCache struct {
	cache *otter.Cache[string, []Instance]
}

// onEvict 在目录因容量被淘汰后异步调用，显式移除与覆盖写入不会触发
func newResolutionCache(capacity int, onEvict func(path string)) (*resolutionCache, error) {
	c, err := otter.New(&otter.Options[string, []Instance]{
		MaximumSize: capacity,
		OnDeletion: func(e otter.DeletionEvent[string, []Instance]) {
			if onEvict != nil && e.WasEvicted() {
				onEvict(e.Key)
			}
		},
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build resolution cache")
	}
	return &resolutionCache{cache: c}, nil
}

func (c *resolutionCache) get(path string) ([]Instance, bool) {
	return c.cache.GetIfPresent(path)
}

func (c *resolutionCache) set(path string, list []Instance) {
	c.cache.Set(path, list)
}

func (c *resolutionCache) remove(path string) {
	c.cache.Invalidate(path)
}

func (c *resolutionCache) has(path string) bool {
	_, ok := c.cache.GetIfPresent(path)
	return ok
}

func (c *resolutionCache) clear() {
	c.cache.InvalidateAll()
}
