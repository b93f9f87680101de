package trace

// Span 名称
const (
	SpanResolve    = "registry.resolve"
	SpanAnnounce   = "registry.announce"
	SpanUnannounce = "registry.unannounce"
)

// Span 属性键
const (
	AttrDomain     = "srvd.domain"
	AttrService    = "srvd.service"
	AttrInstanceID = "srvd.instance_id"
	AttrCacheHit   = "srvd.cache_hit"
	AttrCount      = "srvd.instance_count"
)

// TracerName registry 使用的 Tracer 名称
const TracerName = "github.com/ceyewan/srvd/registry"
