package export

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/lk2023060901/rbmarshal-go/internal/json"
)

// Serializer 抽象了“导出树 -> 字节流”的序列化能力。
type Serializer interface {
	Marshal(v any) ([]byte, error)
}

// JSONSerializer 使用 internal/json（基于 bytedance/sonic）输出 JSON。
type JSONSerializer struct {
	Indent bool
}

func (s JSONSerializer) Marshal(v any) ([]byte, error) {
	if s.Indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// YAMLSerializer 使用 gopkg.in/yaml.v3 输出 YAML。
type YAMLSerializer struct{}

func (YAMLSerializer) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CBORSerializer 使用 fxamacker/cbor 输出 CBOR。
type CBORSerializer struct{}

func (CBORSerializer) Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

// 编译期断言：确保各实现满足 Serializer 接口。
var (
	_ Serializer = JSONSerializer{}
	_ Serializer = YAMLSerializer{}
	_ Serializer = CBORSerializer{}
)

// jsonKey 将任意键转换为 JSON 对象键。
func jsonKey(k any) (string, error) {
	switch k := k.(type) {
	case string:
		return k, nil
	case []byte:
		return string(k), nil
	case nil:
		return "nil", nil
	case bool:
		return strconv.FormatBool(k), nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case float64:
		return strconv.FormatFloat(k, 'g', -1, 64), nil
	default:
		data, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// MarshalJSON 按插入顺序输出，非字符串键被转换为字符串。
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m.Pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := jsonKey(p.Key)
		if err != nil {
			return nil, err
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML 输出保持顺序的映射节点，键可以是任意值。
func (m *Map) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range m.Pairs {
		k, v := new(yaml.Node), new(yaml.Node)
		if err := k.Encode(p.Key); err != nil {
			return nil, err
		}
		if err := v.Encode(p.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, k, v)
	}
	return node, nil
}

// MarshalCBOR 输出定长映射，键值对按插入顺序排列。
func (m *Map) MarshalCBOR() ([]byte, error) {
	buf := bytes.NewBuffer(cborHead(5, uint64(len(m.Pairs))))
	for _, p := range m.Pairs {
		for _, item := range []any{p.Key, p.Value} {
			data, err := cbor.Marshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
	}
	return buf.Bytes(), nil
}

// cborHead 编码 CBOR 数据项的首部（RFC 8949 3.1）。
func cborHead(major byte, n uint64) []byte {
	mt := major << 5
	switch {
	case n < 24:
		return []byte{mt | byte(n)}
	case n <= 0xff:
		return []byte{mt | 24, byte(n)}
	case n <= 0xffff:
		return binary.BigEndian.AppendUint16([]byte{mt | 25}, uint16(n))
	case n <= 0xffffffff:
		return binary.BigEndian.AppendUint32([]byte{mt | 26}, uint32(n))
	default:
		return binary.BigEndian.AppendUint64([]byte{mt | 27}, n)
	}
}
