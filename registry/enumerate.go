package registry

import (
	"context"
	"slices"

	"github.com/ceyewan/srvd/coord"
)

// Domains 列出全部域
func (r *registry) Domains(ctx context.Context) ([]string, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	names, err := r.store.Children(ctx, r.paths.root())
	if err != nil {
		return nil, r.enumerationError(r.paths.root(), err)
	}
	slices.Sort(names)
	return names, nil
}

// Types 列出域下的全部服务类型
func (r *registry) Types(ctx context.Context, domain string) ([]string, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := validateDomain(domain); err != nil {
		return nil, err
	}

	path := r.paths.domain(domain)
	names, err := r.store.Children(ctx, path)
	if err != nil {
		return nil, r.enumerationError(path, err)
	}
	types := make([]string, len(names))
	for i, n := range names {
		types[i] = decodeSegment(n)
	}
	slices.Sort(types)
	return types, nil
}

// Services 是 Types 的别名
func (r *registry) Services(ctx context.Context, domain string) ([]string, error) {
	return r.Types(ctx, domain)
}

func (r *registry) enumerationError(path string, err error) error {
	if coord.IsNoNode(err) {
		return notFound("path %q does not exist", path)
	}
	return err
}
