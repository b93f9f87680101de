package registry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ceyewan/srvd/clog"
	"github.com/ceyewan/srvd/coord"
	"github.com/ceyewan/srvd/trace"
)

const (
	opAnnounce   = "announce"
	opUnannounce = "unannounce"
)

// Announce 通告实例，返回本地生成的实例 ID
func (r *registry) Announce(ctx context.Context, domain, service string, payload any) (string, error) {
	id := r.ids.Next()
	return id, r.announce(ctx, domain, service, id, payload)
}

// AnnounceAsync 异步通告实例
func (r *registry) AnnounceAsync(domain, service string, payload any) (string, <-chan error) {
	id := r.ids.Next()
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- r.announce(r.ctx, domain, service, id, payload)
	}()
	return id, done
}

func (r *registry) announce(ctx context.Context, domain, service, id string, payload any) (err error) {
	ctx, span := startSpan(ctx, trace.SpanAnnounce, domain, service)
	span.SetAttributes(attribute.String(trace.AttrInstanceID, id))
	defer func() {
		r.metrics.observeAnnounce(ctx, opAnnounce, err)
		endSpan(span, err)
	}()

	if err := r.ensureOpen(); err != nil {
		return err
	}
	if err := validateDirectory(domain, service); err != nil {
		return err
	}
	if err := validateInstanceID(id); err != nil {
		return err
	}
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}

	dir := r.paths.directory(domain, service)
	if err := coord.MkdirAll(ctx, r.store, dir); err != nil {
		r.logger.Error("failed to create directory",
			clog.String("path", dir), clog.Error(err))
		return err
	}

	path := dir + "/" + id
	if err := r.store.Create(ctx, path, data, coord.Ephemeral); err != nil {
		r.logger.Error("failed to announce instance",
			clog.String("path", path), clog.Error(err))
		return err
	}

	r.logger.Info("instance announced",
		clog.String("domain", domain),
		clog.String("service", service),
		clog.String("id", id))
	return nil
}

// Unannounce 撤销实例
func (r *registry) Unannounce(ctx context.Context, domain, service, id string) (err error) {
	ctx, span := startSpan(ctx, trace.SpanUnannounce, domain, service)
	span.SetAttributes(attribute.String(trace.AttrInstanceID, id))
	defer func() {
		r.metrics.observeAnnounce(ctx, opUnannounce, err)
		endSpan(span, err)
	}()

	if err := r.ensureOpen(); err != nil {
		return err
	}
	if err := validateDirectory(domain, service); err != nil {
		return err
	}
	if err := validateInstanceID(id); err != nil {
		return err
	}

	path := r.paths.instance(domain, service, id)
	if err := r.store.Delete(ctx, path); err != nil {
		r.logger.Warn("failed to unannounce instance",
			clog.String("path", path), clog.Error(err))
		return err
	}

	r.logger.Info("instance unannounced",
		clog.String("domain", domain),
		clog.String("service", service),
		clog.String("id", id))
	return nil
}
