package export

import (
	"math"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/rbmarshal-go/pkg/marshal"
)

// ClassKey 是对象导出后保存类名的键。
const ClassKey = "__class"

// Pair 是有序映射中的一个键值对。
type Pair struct {
	Key   any
	Value any
}

// Map 是保持插入顺序的映射，Ruby 的 Hash 与对象都导出为 Map。
type Map struct {
	Pairs []Pair
}

func (m *Map) Set(key, value any) {
	m.Pairs = append(m.Pairs, Pair{Key: key, Value: value})
}

// Get 按字符串键查找，同名键取最后一个。
func (m *Map) Get(key string) (any, bool) {
	for i := len(m.Pairs) - 1; i >= 0; i-- {
		if k, ok := m.Pairs[i].Key.(string); ok && k == key {
			return m.Pairs[i].Value, true
		}
	}
	return nil, false
}

func (m *Map) Len() int {
	return len(m.Pairs)
}

type treeFrame struct {
	isMap  bool
	arr    []any
	m      *Map
	key    any
	hasKey bool
}

// maxPrealloc 限制按声明长度预分配的容量，声明长度来自不可信输入。
const maxPrealloc = 1024

// treeBuilder 只实现基础 Visitor 与符号、对象两种能力，
// 其余扩展由读取器降级为基础事件。
type treeBuilder struct {
	stack []*treeFrame
	root  any
	done  bool
	// finiteFloats 为 true 时 NaN 与 ±Inf 以字符串表示，供 JSON 使用。
	finiteFloats bool
}

var (
	_ marshal.Visitor       = (*treeBuilder)(nil)
	_ marshal.SymbolVisitor = (*treeBuilder)(nil)
	_ marshal.ObjectVisitor = (*treeBuilder)(nil)
)

func (b *treeBuilder) Tree() (any, error) {
	if !b.done || len(b.stack) != 0 {
		return nil, errors.New("tree is incomplete")
	}
	return b.root, nil
}

func (b *treeBuilder) add(v any) error {
	if len(b.stack) == 0 {
		if b.done {
			return errors.New("more than one top-level value")
		}
		b.root, b.done = v, true
		return nil
	}
	top := b.stack[len(b.stack)-1]
	if !top.isMap {
		top.arr = append(top.arr, v)
		return nil
	}
	if !top.hasKey {
		top.key, top.hasKey = v, true
		return nil
	}
	top.m.Set(top.key, v)
	top.key, top.hasKey = nil, false
	return nil
}

func (b *treeBuilder) pop(isMap bool) error {
	if len(b.stack) == 0 {
		return errors.New("end without begin")
	}
	top := b.stack[len(b.stack)-1]
	if top.isMap != isMap || top.hasKey {
		return errors.New("mismatched end")
	}
	b.stack = b.stack[:len(b.stack)-1]
	if isMap {
		return b.add(top.m)
	}
	if top.arr == nil {
		top.arr = []any{}
	}
	return b.add(top.arr)
}

func (b *treeBuilder) VisitNil() error {
	return b.add(nil)
}

func (b *treeBuilder) VisitBool(v bool) error {
	return b.add(v)
}

func (b *treeBuilder) VisitInt(v int64) error {
	return b.add(v)
}

func (b *treeBuilder) VisitFloat(v float64) error {
	if b.finiteFloats && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return b.add(marshal.Describe(marshal.Float(v)))
	}
	return b.add(v)
}

// VisitString 将非 UTF-8 内容保留为字节串。
func (b *treeBuilder) VisitString(s string) error {
	if !utf8.ValidString(s) {
		return b.add([]byte(s))
	}
	return b.add(s)
}

func (b *treeBuilder) VisitSymbol(s marshal.Symbol) error {
	return b.add(string(s))
}

func (b *treeBuilder) BeginArray(n int) error {
	b.stack = append(b.stack, &treeFrame{arr: make([]any, 0, min(n, maxPrealloc))})
	return nil
}

func (b *treeBuilder) EndArray() error {
	return b.pop(false)
}

func (b *treeBuilder) BeginHash(n int) error {
	b.stack = append(b.stack, &treeFrame{isMap: true, m: &Map{Pairs: make([]Pair, 0, min(n, maxPrealloc))}})
	return nil
}

func (b *treeBuilder) EndHash() error {
	return b.pop(true)
}

func (b *treeBuilder) BeginObject(class marshal.Symbol, n int) error {
	m := &Map{Pairs: make([]Pair, 0, min(n, maxPrealloc)+1)}
	m.Set(ClassKey, string(class))
	b.stack = append(b.stack, &treeFrame{isMap: true, m: m})
	return nil
}

func (b *treeBuilder) ObjectField(name marshal.Symbol) error {
	return b.add(string(name))
}

func (b *treeBuilder) EndObject() error {
	return b.pop(true)
}
