package marshal

import (
	"fmt"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

// Walk 以与解码相同的事件序列把 v 交给访问者，能力降级规则也相同。
// 常用于把内存中的值送入 *Encoder 或导出器。
func Walk(v Value, visitor Visitor) error {
	if visitor == nil {
		return merr.WrapErrParameterInvalidMsg("marshal: nil visitor")
	}
	return walk(v, newCapabilities(visitor))
}

func walk(v Value, c *capabilities) error {
	switch x := v.(type) {
	case nil:
		return merr.WrapErrUnrepresentableValue("nil Value")
	case Nil:
		return c.base.VisitNil()
	case Bool:
		return c.base.VisitBool(bool(x))
	case Integer:
		return c.base.VisitInt(int64(x))
	case Float:
		return c.base.VisitFloat(float64(x))
	case Symbol:
		return c.visitSymbol(x)
	case RbString:
		return c.visitRawString(x)
	case Userdata:
		return c.visitUserdata(x)
	case Array:
		if err := c.visitIvars(x.Ivars); err != nil {
			return err
		}
		if err := c.base.BeginArray(len(x.Elems)); err != nil {
			return err
		}
		for _, elem := range x.Elems {
			if err := walk(elem, c); err != nil {
				return err
			}
		}
		return c.base.EndArray()
	case RbHash:
		return walkHash(x, c)
	case Object:
		if err := c.beginObject(x.Class, len(x.Fields)); err != nil {
			return err
		}
		for _, f := range x.Fields {
			if err := c.objectField(f.Name); err != nil {
				return err
			}
			if err := walk(f.Value, c); err != nil {
				return err
			}
		}
		return c.endObject()
	}
	return merr.WrapErrUnrepresentableValue(fmt.Sprintf("unknown value type %T", v))
}

func walkHash(h RbHash, c *capabilities) error {
	if err := c.visitIvars(h.Ivars); err != nil {
		return err
	}
	deliverDefault, err := c.beginHash(len(h.Entries), h.Default != nil)
	if err != nil {
		return err
	}
	for _, e := range h.Entries {
		if err := walk(e.Key, c); err != nil {
			return err
		}
		if err := walk(e.Value, c); err != nil {
			return err
		}
	}
	if deliverDefault {
		if err := c.hashDef.HashDefault(); err != nil {
			return err
		}
		if err := walk(h.Default, c); err != nil {
			return err
		}
	}
	return c.base.EndHash()
}
