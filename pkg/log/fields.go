package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameSource    = "source"
	FieldNameOffset    = "offset"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldSource 标注被读取的文件或数据来源。
func FieldSource(source string) zap.Field {
	return zap.String(FieldNameSource, source)
}

// FieldPath 标注值在文档中的位置，例如 $[0].name。
func FieldPath(path string) zap.Field {
	return zap.String("path", path)
}

// FieldOffset 标注输入中的字节偏移。
func FieldOffset(offset int) zap.Field {
	return zap.Int(FieldNameOffset, offset)
}
