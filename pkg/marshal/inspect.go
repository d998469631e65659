package marshal

import (
	"strconv"
	"strings"
)

// Inspect 以接近 Ruby inspect 的单行形式输出整棵值树，供命令行与调试使用。
// 字符串与数组上的实例变量不输出，哈希默认值以 "(default: v)" 后缀表示。
func Inspect(v Value) string {
	var sb strings.Builder
	inspect(&sb, v)
	return sb.String()
}

func inspect(sb *strings.Builder, v Value) {
	switch val := v.(type) {
	case Array:
		sb.WriteByte('[')
		for i, e := range val.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			inspect(sb, e)
		}
		sb.WriteByte(']')
	case RbHash:
		sb.WriteByte('{')
		for i, e := range val.Entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			inspect(sb, e.Key)
			sb.WriteString(" => ")
			inspect(sb, e.Value)
		}
		sb.WriteByte('}')
		if val.Default != nil {
			sb.WriteString(" (default: ")
			inspect(sb, val.Default)
			sb.WriteByte(')')
		}
	case Object:
		sb.WriteString("#<")
		sb.WriteString(string(val.Class))
		for i, f := range val.Fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte(' ')
			sb.WriteString(string(f.Name))
			sb.WriteByte('=')
			inspect(sb, f.Value)
		}
		sb.WriteByte('>')
	case Userdata:
		sb.WriteString("#<")
		sb.WriteString(string(val.Class))
		sb.WriteString(" userdata ")
		sb.WriteString(strconv.Quote(string(val.Data)))
		sb.WriteByte('>')
	default:
		sb.WriteString(Describe(v))
	}
}
