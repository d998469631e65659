package marshal

import "fmt"

// 版本头：Ruby 1.8 起固定为 4.8。
const (
	MajorVersion byte = 4
	MinorVersion byte = 8
)

// Tag 是每个编码值的首字节，标识该值的类型。
type Tag byte

const (
	TagNil             Tag = '0'
	TagTrue            Tag = 'T'
	TagFalse           Tag = 'F'
	TagInteger         Tag = 'i'
	TagBignum          Tag = 'l'
	TagFloat           Tag = 'f'
	TagString          Tag = '"'
	TagSymbol          Tag = ':'
	TagSymlink         Tag = ';'
	TagArray           Tag = '['
	TagHash            Tag = '{'
	TagHashDefault     Tag = '}'
	TagObject          Tag = 'o'
	TagObjectLink      Tag = '@'
	TagInstance        Tag = 'I'
	TagUserDef         Tag = 'u'
	TagUserMarshal     Tag = 'U'
	TagUserClass       Tag = 'C'
	TagExtended        Tag = 'e'
	TagRegexp          Tag = '/'
	TagStruct          Tag = 'S'
	TagData            Tag = 'd'
	TagClassRef        Tag = 'c'
	TagModuleRef       Tag = 'm'
	TagModuleRefLegacy Tag = 'M'
)

// 紧凑整数的可表示范围：1~4 字节小端载荷。
const (
	PackedIntMin int64 = -(1 << 32)
	PackedIntMax int64 = 1<<32 - 1
)

// tagInfo 描述标签表中的一项。
type tagInfo struct {
	name string
	// linkable 表示该标签产出的值会占用对象链接表的一个槽位。
	linkable bool
	// unsupported 表示读取时直接报 UnsupportedType，目前只有 bignum。
	unsupported bool
}

var tagTable = map[Tag]tagInfo{
	TagNil:             {name: "nil"},
	TagTrue:            {name: "true"},
	TagFalse:           {name: "false"},
	TagInteger:         {name: "integer"},
	TagBignum:          {name: "bignum", linkable: true, unsupported: true},
	TagFloat:           {name: "float", linkable: true},
	TagString:          {name: "string", linkable: true},
	TagSymbol:          {name: "symbol"},
	TagSymlink:         {name: "symlink"},
	TagArray:           {name: "array", linkable: true},
	TagHash:            {name: "hash", linkable: true},
	TagHashDefault:     {name: "hash with default", linkable: true},
	TagObject:          {name: "object", linkable: true},
	TagObjectLink:      {name: "object link"},
	TagInstance:        {name: "instance variables"},
	TagUserDef:         {name: "user defined", linkable: true},
	TagUserMarshal:     {name: "user marshal", linkable: true},
	TagUserClass:       {name: "user class"},
	TagExtended:        {name: "extended"},
	TagRegexp:          {name: "regexp", linkable: true},
	TagStruct:          {name: "struct", linkable: true},
	TagData:            {name: "data", linkable: true},
	TagClassRef:        {name: "class", linkable: true},
	TagModuleRef:       {name: "module", linkable: true},
	TagModuleRefLegacy: {name: "module (legacy)", linkable: true},
}

// lookupTag 查表；ok 为 false 表示未知标签。
func lookupTag(b byte) (tagInfo, bool) {
	info, ok := tagTable[Tag(b)]
	return info, ok
}

// String 返回标签的可读名称。
func (t Tag) String() string {
	if info, ok := tagTable[t]; ok {
		return info.name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Linkable 表示该标签的值是否进入对象链接表。
func (t Tag) Linkable() bool {
	return tagTable[t].linkable
}
