package marshal

// HashEntry 是 RbHash 的一个键值对。
type HashEntry struct {
	Key   Value
	Value Value
}

// RbHash 是保持插入顺序的映射。
//
// 键不要求在 Go 中可比较，查找使用 Equal。Default 非 nil 表示带默认值的 Hash
// （线上标签 '}'），Default 为 Nil{} 与没有默认值是两种不同的状态。
type RbHash struct {
	Entries []HashEntry
	Default Value
	Ivars   Fields
}

func (RbHash) Kind() Kind { return KindHash }
func (RbHash) isValue()   {}

// NewHash 以键值交替的参数构造 RbHash，参数个数必须为偶数。
func NewHash(kv ...Value) RbHash {
	if len(kv)%2 != 0 {
		panic("marshal: NewHash requires an even number of arguments")
	}
	h := RbHash{Entries: make([]HashEntry, 0, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func (h RbHash) Len() int {
	return len(h.Entries)
}

// Get 按结构相等查找键。
func (h RbHash) Get(key Value) (Value, bool) {
	for i := range h.Entries {
		if Equal(h.Entries[i].Key, key) {
			return h.Entries[i].Value, true
		}
	}
	return nil, false
}

// Set 覆盖已有键的值，不存在时追加。
func (h *RbHash) Set(key, value Value) {
	for i := range h.Entries {
		if Equal(h.Entries[i].Key, key) {
			h.Entries[i].Value = value
			return
		}
	}
	h.Entries = append(h.Entries, HashEntry{Key: key, Value: value})
}

func (h RbHash) Keys() []Value {
	keys := make([]Value, len(h.Entries))
	for i := range h.Entries {
		keys[i] = h.Entries[i].Key
	}
	return keys
}
