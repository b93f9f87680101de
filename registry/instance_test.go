package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstance(t *testing.T) {
	obj := newInstance("a", []byte(`{"host":"10.0.0.1","port":80}`))
	assert.Equal(t, map[string]any{"host": "10.0.0.1", "port": float64(80)}, obj.Value)

	str := newInstance("b", []byte("10.0.0.2:9000"))
	assert.Equal(t, "10.0.0.2:9000", str.Value)

	quoted := newInstance("c", []byte(`"10.0.0.3:9000"`))
	assert.Equal(t, "10.0.0.3:9000", quoted.Value)

	empty := newInstance("d", nil)
	assert.Equal(t, "", empty.Value)
}

func TestInstanceAddress(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"address field", `{"address":"h:1"}`, "h:1", true},
		{"host and port", `{"host":"10.0.0.1","port":8080}`, "10.0.0.1:8080", true},
		{"string port", `{"host":"h","port":"http"}`, "h:http", true},
		{"plain string", `10.0.0.2:9000`, "10.0.0.2:9000", true},
		{"ipv6", `{"host":"::1","port":80}`, "[::1]:80", true},
		{"no port", `{"host":"h"}`, "", false},
		{"not an address", `hello`, "", false},
		{"array", `[1,2]`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := newInstance("x", []byte(tt.raw)).Address()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstanceDecode(t *testing.T) {
	inst := newInstance("a", []byte(`{"host":"h","port":1,"weight":3}`))

	var v struct {
		Host   string `json:"host"`
		Weight int    `json:"weight"`
	}
	require.NoError(t, inst.Decode(&v))
	assert.Equal(t, "h", v.Host)
	assert.Equal(t, 3, v.Weight)

	w, ok := inst.Field("weight")
	assert.True(t, ok)
	assert.Equal(t, float64(3), w)

	_, ok = newInstance("b", []byte("plain")).Field("weight")
	assert.False(t, ok)
}

func TestEncodePayload(t *testing.T) {
	data, err := encodePayload(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = encodePayload("10.0.0.1:80")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:80", string(data))

	data, err = encodePayload([]byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, data)

	data, err = encodePayload(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	data, err = encodePayload(map[string]any{"host": "h", "port": 80})
	require.NoError(t, err)
	assert.JSONEq(t, `{"host":"h","port":80}`, string(data))

	_, err = encodePayload(func() {})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestShuffledDoesNotMutate(t *testing.T) {
	list := []Instance{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	orig := append([]Instance(nil), list...)

	for range 20 {
		out := shuffled(list)
		assert.ElementsMatch(t, orig, out)
	}
	assert.Equal(t, orig, list)
	assert.Empty(t, shuffled(nil))
}
