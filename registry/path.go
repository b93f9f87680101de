package registry

import (
	"net/url"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// encodeSegment 按 encodeURIComponent 的规则编码服务类型，
// 保证任意类型名都能作为单个路径段，并与其它语言写入的节点互通。
func encodeSegment(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// decodeSegment 还原 encodeSegment 的结果；非法编码原样返回
func decodeSegment(s string) string {
	d, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return d
}

func shouldEscape(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return false
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return false
	}
	return true
}

// paths 负责 {prefix}/{domain}/{encodedType}[/{instanceId}] 的拼装与解析
type paths struct {
	prefix string
}

func (p paths) root() string {
	return p.prefix
}

func (p paths) domain(domain string) string {
	return p.prefix + "/" + domain
}

func (p paths) directory(domain, service string) string {
	return p.domain(domain) + "/" + encodeSegment(service)
}

func (p paths) instance(domain, service, id string) string {
	return p.directory(domain, service) + "/" + id
}

// parseDirectory 从目录路径还原 (domain, service)
func (p paths) parseDirectory(path string) (domain, service string, ok bool) {
	rest, found := strings.CutPrefix(path, p.prefix+"/")
	if !found {
		return "", "", false
	}
	domain, enc, found := strings.Cut(rest, "/")
	if !found || domain == "" || enc == "" || strings.Contains(enc, "/") {
		return "", "", false
	}
	return domain, decodeSegment(enc), true
}

func validateDomain(domain string) error {
	if domain == "" || strings.Contains(domain, "/") || domain == "." || domain == ".." {
		return invalidArgument("invalid domain %q", domain)
	}
	return nil
}

func validateService(service string) error {
	if service == "" {
		return invalidArgument("service type must not be empty")
	}
	return nil
}

func validateDirectory(domain, service string) error {
	if err := validateDomain(domain); err != nil {
		return err
	}
	return validateService(service)
}

func validateInstanceID(id string) error {
	if id == "" || strings.Contains(id, "/") {
		return invalidArgument("invalid instance id %q", id)
	}
	return nil
}
