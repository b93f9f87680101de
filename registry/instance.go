package registry

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
)

// Instance 目录下的一个实例记录
type Instance struct {
	// ID 实例 ID，即节点名
	ID string `json:"id"`
	// Value 负载解析结果：合法 JSON 为解析后的值，否则为原始字符串
	Value any `json:"value"`
	// Raw 节点中保存的原始字节
	Raw []byte `json:"-"`
}

func newInstance(id string, raw []byte) Instance {
	inst := Instance{ID: id, Raw: raw}
	var v any
	if len(raw) > 0 && json.Unmarshal(raw, &v) == nil {
		inst.Value = v
	} else {
		inst.Value = string(raw)
	}
	return inst
}

// Decode 将原始负载按 JSON 解析到 v
func (i Instance) Decode(v any) error {
	return json.Unmarshal(i.Raw, v)
}

// Field 读取对象负载的字段，负载不是对象或字段不存在时返回 false
func (i Instance) Field(name string) (any, bool) {
	obj, ok := i.Value.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[name]
	return v, ok
}

// Address 从负载中提取网络地址
//
// 支持三种负载形态：
//   - {"address": "host:port"}
//   - {"host": "h", "port": 8080}
//   - "host:port" 形式的字符串
func (i Instance) Address() (string, bool) {
	if s, ok := i.Value.(string); ok {
		if _, _, err := net.SplitHostPort(s); err == nil {
			return s, true
		}
		return "", false
	}
	if v, ok := i.Field("address"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	host, ok := i.Field("host")
	if !ok {
		return "", false
	}
	h, ok := host.(string)
	if !ok || h == "" {
		return "", false
	}
	port, ok := i.Field("port")
	if !ok {
		return "", false
	}
	switch p := port.(type) {
	case float64:
		return net.JoinHostPort(h, strconv.Itoa(int(p))), true
	case string:
		return net.JoinHostPort(h, p), true
	}
	return "", false
}

// encodePayload 结构化负载序列化为 JSON，[]byte 与 string 原样保存
func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %w", ErrInvalidArgument, err)
	}
	return data, nil
}

// shuffled 返回随机排列的副本，不修改入参
func shuffled(list []Instance) []Instance {
	out := make([]Instance, len(list))
	copy(out, list)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
