// Package json 是项目内统一的 JSON 入口，底层使用 bytedance/sonic。
package json

import (
	"github.com/bytedance/sonic"
)

// api 与 encoding/json 行为保持一致：map 键排序并转义 HTML。
var api = sonic.ConfigStd

// RawMessage 与 encoding/json.RawMessage 相同。
type RawMessage = []byte

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func MarshalString(v any) (string, error) {
	return api.MarshalToString(v)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

func Valid(data []byte) bool {
	return api.Valid(data)
}
