package marshal

// Field 是一个 符号 → 值 的条目。
type Field struct {
	Name  Symbol
	Value Value
}

// F 是构造 Field 的简写。
func F(name Symbol, value Value) Field {
	return Field{Name: name, Value: value}
}

// Fields 是按插入顺序保存的实例变量表。
// 名称原样保存，同名条目由 Set 覆盖。
type Fields []Field

func (f Fields) Len() int {
	return len(f)
}

// Get 返回第一个同名条目的值。
func (f Fields) Get(name Symbol) (Value, bool) {
	for i := range f {
		if f[i].Name == name {
			return f[i].Value, true
		}
	}
	return nil, false
}

// Set 覆盖同名条目，不存在时追加到末尾。
func (f *Fields) Set(name Symbol, value Value) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Name: name, Value: value})
}

// Delete 删除同名条目并返回是否存在。
func (f *Fields) Delete(name Symbol) bool {
	for i := range *f {
		if (*f)[i].Name == name {
			*f = append((*f)[:i], (*f)[i+1:]...)
			return true
		}
	}
	return false
}

func (f Fields) Names() []Symbol {
	names := make([]Symbol, len(f))
	for i := range f {
		names[i] = f[i].Name
	}
	return names
}

func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	copy(out, f)
	return out
}
