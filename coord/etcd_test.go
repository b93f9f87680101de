package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func keyEvent(typ mvccpb.Event_EventType, key string, created, modified int64) *clientv3.Event {
	return &clientv3.Event{
		Type: typ,
		Kv:   &mvccpb.KeyValue{Key: []byte(key), CreateRevision: created, ModRevision: modified},
	}
}

// TestClassify 只有直接子节点的增删和节点自身的删除会触发监听
func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		event *clientv3.Event
		want  EventType
		ok    bool
	}{
		{"子节点创建", "/srv/a/http", keyEvent(mvccpb.PUT, "/srv/a/http/i1", 7, 7), EventChildrenChanged, true},
		{"子节点删除", "/srv/a/http", keyEvent(mvccpb.DELETE, "/srv/a/http/i1", 0, 9), EventChildrenChanged, true},
		{"子节点数据修改", "/srv/a/http", keyEvent(mvccpb.PUT, "/srv/a/http/i1", 7, 8), 0, false},
		{"孙节点创建", "/srv/a/http", keyEvent(mvccpb.PUT, "/srv/a/http/i1/x", 7, 7), 0, false},
		{"兄弟节点", "/srv/a/http", keyEvent(mvccpb.PUT, "/srv/a/http-alt", 7, 7), 0, false},
		{"节点自身删除", "/srv/a/http", keyEvent(mvccpb.DELETE, "/srv/a/http", 0, 9), EventNodeDeleted, true},
		{"节点自身修改", "/srv/a/http", keyEvent(mvccpb.PUT, "/srv/a/http", 3, 9), 0, false},
		{"根节点子节点", "/", keyEvent(mvccpb.PUT, "/srv", 2, 2), EventChildrenChanged, true},
		{"根节点孙节点", "/", keyEvent(mvccpb.PUT, "/srv/a", 2, 2), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(tt.path, tt.event)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEtcdConfigDefaults(t *testing.T) {
	cfg := &EtcdConfig{}
	cfg.setDefaults()
	assert.Equal(t, 10, cfg.SessionTTL)
}

func TestNewEtcdRequiresConnector(t *testing.T) {
	_, err := NewEtcd(nil, nil)
	assert.Error(t, err)
}
