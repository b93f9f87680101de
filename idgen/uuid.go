// Package idgen 为 srvd 提供实例 ID 生成能力。
//
// 注册节点名即实例 ID，要求全局唯一且不可预测，默认使用 UUID v4。
package idgen

import (
	"github.com/google/uuid"
)

// Generator ID 生成器接口
type Generator interface {
	Next() string
}

// NewUUIDV4 生成 UUID v4 (随机)
//
// 使用示例:
//
//	id := idgen.NewUUIDV4()
func NewUUIDV4() string {
	return uuid.New().String()
}

// NewUUIDV7 生成 UUID v7 (时间排序)
func NewUUIDV7() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return NewUUIDV4()
	}
	return v7.String()
}

// UUID UUID 生成器，支持 v4 与 v7，默认 v4
type UUID struct {
	version string
}

// UUIDOption UUID 初始化选项
type UUIDOption func(*UUID)

// NewUUID 创建 UUID 生成器
//
//	gen := idgen.NewUUID(idgen.WithUUIDVersion("v7"))
//	id := gen.Next()
func NewUUID(opts ...UUIDOption) *UUID {
	u := &UUID{version: "v4"}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WithUUIDVersion 设置 UUID 版本: "v4" | "v7"
func WithUUIDVersion(version string) UUIDOption {
	return func(u *UUID) {
		u.version = version
	}
}

// Next 生成 UUID 字符串
func (u *UUID) Next() string {
	if u.version == "v7" {
		return NewUUIDV7()
	}
	return NewUUIDV4()
}

// Func 将普通函数适配为 Generator，便于测试注入确定性 ID
type Func func() string

func (f Func) Next() string { return f() }
