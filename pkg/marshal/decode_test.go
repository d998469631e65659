package marshal

import (
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

func wire(body ...byte) []byte {
	return append([]byte{MajorVersion, MinorVersion}, body...)
}

// recorder 只实现基础 Visitor，用于观察能力降级后的事件序列。
type recorder struct {
	events []string
	failOn string
}

var errStop = errors.New("stop")

func (r *recorder) add(ev string) error {
	r.events = append(r.events, ev)
	if r.failOn != "" && ev == r.failOn {
		return errStop
	}
	return nil
}

func (r *recorder) VisitNil() error            { return r.add("nil") }
func (r *recorder) VisitBool(v bool) error     { return r.add("bool:" + strconv.FormatBool(v)) }
func (r *recorder) VisitInt(v int64) error     { return r.add("int:" + strconv.FormatInt(v, 10)) }
func (r *recorder) VisitFloat(v float64) error { return r.add("float:" + formatFloat(v)) }
func (r *recorder) VisitString(v string) error { return r.add("str:" + v) }
func (r *recorder) BeginArray(n int) error     { return r.add(fmt.Sprintf("[%d", n)) }
func (r *recorder) EndArray() error            { return r.add("]") }
func (r *recorder) BeginHash(n int) error      { return r.add(fmt.Sprintf("{%d", n)) }
func (r *recorder) EndHash() error             { return r.add("}") }

// wrapperRecorder 额外实现正则与类前缀能力。
type wrapperRecorder struct {
	recorder
}

func (r *wrapperRecorder) VisitUserClass(class Symbol) error { return r.add("class:" + string(class)) }
func (r *wrapperRecorder) VisitExtended(module Symbol) error { return r.add("ext:" + string(module)) }
func (r *wrapperRecorder) VisitRegexp(source RbString, flags byte) error {
	return r.add(fmt.Sprintf("re:%s/%d", source.Data, flags))
}

type DecodeSuite struct {
	suite.Suite
}

func (s *DecodeSuite) decode(data []byte, opts ...DecoderOption) Value {
	v, err := Decode(data, opts...)
	s.Require().NoError(err)
	return v
}

func (s *DecodeSuite) TestImmediates() {
	s.Equal(Nil{}, s.decode(wire('0')))
	s.Equal(Bool(true), s.decode(wire('T')))
	s.Equal(Bool(false), s.decode(wire('F')))
	s.Equal(Integer(1), s.decode(wire('i', 0x06)))
	s.Equal(Integer(-124), s.decode(wire('i', 0xff, 0x84)))
	s.Equal(Float(1.5), s.decode(wire('f', 0x08, '1', '.', '5')))
}

func (s *DecodeSuite) TestFloatSpecials() {
	v := s.decode(wire('f', 0x08, 'n', 'a', 'n'))
	s.True(math.IsNaN(float64(v.(Float))))
	s.True(Equal(Float(math.NaN()), v))

	v = s.decode(wire('f', 0x09, '-', 'i', 'n', 'f'))
	s.True(math.IsInf(float64(v.(Float)), -1))

	_, err := Decode(wire('f', 0x06, 'x'))
	s.ErrorIs(err, merr.ErrMalformedData)
}

func (s *DecodeSuite) TestString() {
	data := wire('I', '"', 0x0a, 'h', 'e', 'l', 'l', 'o', 0x06, ':', 0x06, 'E', 'T')
	v := s.decode(data)
	str, ok := v.(RbString)
	s.Require().True(ok)
	s.Equal("hello", str.String())
	s.Equal(EncodingUTF8, str.Encoding().Kind)
	s.True(Equal(NewString("hello"), v))

	bin := s.decode(wire('"', 0x07, 0xff, 0xfe))
	s.Equal(RbString{Data: []byte{0xff, 0xfe}}, bin)
	s.Equal(EncodingNone, bin.(RbString).Encoding().Kind)
}

func (s *DecodeSuite) TestNamedEncoding() {
	// "x".force_encoding("Shift_JIS")
	data := wire('I', '"', 0x06, 'x', 0x06, ':', 0x0d, 'e', 'n', 'c', 'o', 'd', 'i', 'n', 'g',
		'"', 0x0e, 'S', 'h', 'i', 'f', 't', '_', 'J', 'I', 'S')
	str := s.decode(data).(RbString)
	s.Equal(Encoding{Kind: EncodingNamed, Name: "Shift_JIS"}, str.Encoding())
}

func (s *DecodeSuite) TestSymbolLinks() {
	data := wire('[', 0x08, 'i', 0x06, ':', 0x06, 'a', ';', 0x00)
	s.True(Equal(NewArray(Integer(1), Symbol("a"), Symbol("a")), s.decode(data)))

	_, err := Decode(wire(';', 0x00))
	s.ErrorIs(err, merr.ErrInvalidBackReference)
}

func (s *DecodeSuite) TestHash() {
	data := wire('{', 0x06, 'I', '"', 0x06, 'a', 0x06, ':', 0x06, 'E', 'T', 'i', 0x06)
	v := s.decode(data)
	s.True(Equal(NewHash(NewString("a"), Integer(1)), v))

	got, ok := v.(RbHash).Get(NewBinaryString([]byte("a")))
	s.True(ok)
	s.Equal(Integer(1), got)
}

func (s *DecodeSuite) TestHashDefault() {
	data := wire('}', 0x06, 'i', 0x06, 'i', 0x07, 'i', 0x0a)
	h := s.decode(data).(RbHash)
	s.Equal(1, h.Len())
	s.Equal(Integer(5), h.Default)

	rec := &recorder{}
	s.NoError(DecodeWith(data, rec))
	s.Equal([]string{"{1", "int:1", "int:2", "}"}, rec.events)
}

func pointWire() []byte {
	return wire('o', ':', 0x0a, 'P', 'o', 'i', 'n', 't', 0x07,
		':', 0x07, '@', 'x', 'i', 0x06,
		':', 0x07, '@', 'y', 'i', 0x07)
}

func (s *DecodeSuite) TestObject() {
	v := s.decode(pointWire())
	s.True(Equal(NewObject("Point", F("@x", Integer(1)), F("@y", Integer(2))), v))

	rec := &recorder{}
	s.NoError(DecodeWith(pointWire(), rec))
	s.Equal([]string{"{2", "str:@x", "int:1", "str:@y", "int:2", "}"}, rec.events)
}

func (s *DecodeSuite) TestObjectClassMustBeSymbol() {
	_, err := Decode(wire('o', 'i', 0x06, 0x00))
	s.ErrorIs(err, merr.ErrMalformedData)
	s.Contains(err.Error(), "expected symbol")
}

func (s *DecodeSuite) TestUserdata() {
	data := wire('u', ':', 0x09, 'T', 'i', 'm', 'e', 0x08, 0x01, 0x02, 0x03)
	s.Equal(Userdata{Class: "Time", Data: []byte{1, 2, 3}}, s.decode(data))

	rec := &recorder{}
	s.NoError(DecodeWith(data, rec))
	s.Equal([]string{"str:\x01\x02\x03"}, rec.events)
}

func (s *DecodeSuite) TestClassRef() {
	v := s.decode(wire('c', 0x0b, 'S', 't', 'r', 'i', 'n', 'g'))
	s.Equal("String", v.(RbString).String())
}

func (s *DecodeSuite) TestIvarsOnArray() {
	data := wire('I', '[', 0x06, 'i', 0x06, 0x06, ':', 0x07, '@', 'a', 'i', 0x07)
	v := s.decode(data)
	s.True(Equal(Array{Elems: []Value{Integer(1)}, Ivars: Fields{F("@a", Integer(2))}}, v))

	rec := &recorder{}
	s.NoError(DecodeWith(data, rec))
	s.Equal([]string{"[1", "int:1", "]"}, rec.events)
}

func (s *DecodeSuite) TestIvarsOnObjectMergeIntoFields() {
	body := pointWire()[2:]
	data := wire(append(append([]byte{'I'}, body...), 0x06, ':', 0x07, '@', 'z', 'T')...)
	v := s.decode(data)
	s.True(Equal(NewObject("Point", F("@x", Integer(1)), F("@y", Integer(2)), F("@z", Bool(true))), v))
}

func (s *DecodeSuite) TestIvarsOnImmediate() {
	_, err := Decode(wire('I', 'i', 0x06, 0x00))
	s.ErrorIs(err, merr.ErrUnsupportedType)
}

func (s *DecodeSuite) TestIvarsOnSymbolDropped() {
	data := wire('I', ':', 0x06, 'a', 0x06, ':', 0x06, 'E', 'T')
	s.Equal(Symbol("a"), s.decode(data))
}

func (s *DecodeSuite) TestObjectLink() {
	// s = "x"; [s, s]
	data := wire('[', 0x07, 'I', '"', 0x06, 'x', 0x06, ':', 0x06, 'E', 'T', '@', 0x06)
	v := s.decode(data).(Array)
	s.Require().Equal(2, v.Len())
	s.True(Equal(v.Elems[0], v.Elems[1]))
	s.Equal(EncodingUTF8, v.Elems[1].(RbString).Encoding().Kind)

	// 两个元素是独立副本。
	v.Elems[0].(RbString).Data[0] = 'y'
	s.Equal("x", v.Elems[1].(RbString).String())
}

func (s *DecodeSuite) TestObjectLinkToIvarArray() {
	// a = [1] with @a = 2; [a, a]
	inner := []byte{'I', '[', 0x06, 'i', 0x06, 0x06, ':', 0x07, '@', 'a', 'i', 0x07}
	data := wire(append(append([]byte{'[', 0x07}, inner...), '@', 0x06)...)
	v := s.decode(data).(Array)
	s.Require().Equal(2, v.Len())
	s.True(Equal(v.Elems[0], v.Elems[1]))
	s.Equal(1, v.Elems[1].(Array).Ivars.Len())
}

func (s *DecodeSuite) TestInvalidObjectLink() {
	_, err := Decode(wire('[', 0x06, '@', 0x06))
	s.ErrorIs(err, merr.ErrInvalidBackReference)
}

func (s *DecodeSuite) TestCycle() {
	// a = []; a << a
	_, err := Decode(wire('[', 0x06, '@', 0x00))
	s.ErrorIs(err, merr.ErrRecursionLimitExceeded)
}

func (s *DecodeSuite) TestTruncated() {
	_, err := Decode(wire('[', 0x07, 'i'))
	s.ErrorIs(err, merr.ErrUnexpectedEOF)

	_, err = Decode(wire('"', 0x0a, 'h'))
	s.ErrorIs(err, merr.ErrUnexpectedEOF)

	_, err = Decode(wire())
	s.ErrorIs(err, merr.ErrUnexpectedEOF)

	_, err = Decode([]byte{MajorVersion})
	s.ErrorIs(err, merr.ErrUnexpectedEOF)
}

func (s *DecodeSuite) TestUnknownTag() {
	_, err := Decode(wire('z'))
	s.ErrorIs(err, merr.ErrUnknownTag)
	s.Contains(err.Error(), "tag=0x7a")
	s.Contains(err.Error(), "offset=2")
}

func (s *DecodeSuite) TestUnsupportedTags() {
	_, err := Decode(wire('l', '+', 0x07, 0x00, 0x00, 0x00, 0x40))
	s.ErrorIs(err, merr.ErrUnsupportedType)
	s.Contains(err.Error(), "bignum")

	_, err = Decode(wire('[', 0x06, 'l', '-', 0x06, 0x01, 0x00))
	s.ErrorIs(err, merr.ErrUnsupportedType)
}

func (s *DecodeSuite) TestStructDecodesAsObject() {
	data := wire('S', ':', 0x06, 'P', 0x07, ':', 0x06, 'x', 'i', 0x06, ':', 0x06, 'y', 'i', 0x07)
	s.True(Equal(NewObject("P", F("x", Integer(1)), F("y", Integer(2))), s.decode(data)))
}

func (s *DecodeSuite) TestUserMarshalAndData() {
	want := NewObject("U", F(MarshalDataField, NewArray(Integer(1))))
	s.True(Equal(want, s.decode(wire('U', ':', 0x06, 'U', '[', 0x06, 'i', 0x06))))

	want = NewObject("D", F(MarshalDataField, Nil{}))
	s.True(Equal(want, s.decode(wire('d', ':', 0x06, 'D', '0'))))

	// U 先于其数据占用槽位。
	v := s.decode(wire('[', 0x07, 'U', ':', 0x06, 'U', '[', 0x06, 'i', 0x06, '@', 0x06)).(Array)
	s.Require().Equal(2, v.Len())
	s.Equal(KindObject, v.Elems[1].Kind())
	s.True(Equal(v.Elems[0], v.Elems[1]))

	rec := &recorder{}
	s.NoError(DecodeWith(wire('d', ':', 0x06, 'D', 'i', 0x06), rec))
	s.Equal([]string{"{1", "str:marshal_data", "int:1", "}"}, rec.events)
}

func (s *DecodeSuite) TestRegexp() {
	data := wire('I', '/', 0x08, 'a', 'b', 'c', 0x01, 0x06, ':', 0x06, 'E', 'F')
	want := RbString{Data: []byte("abc"), Ivars: Fields{F("E", Bool(false)), F(RegexpFlagsField, Integer(1))}}
	v := s.decode(data)
	s.True(Equal(want, v))
	s.Equal(EncodingASCII, v.(RbString).Encoding().Kind)

	v = s.decode(wire('/', 0x06, 'a', 0x00))
	s.True(Equal(RbString{Data: []byte("a"), Ivars: Fields{F(RegexpFlagsField, Integer(0))}}, v))

	rec := &wrapperRecorder{}
	s.NoError(DecodeWith(data, rec))
	s.Equal([]string{"re:abc/1"}, rec.events)

	// 选项位缺失。
	_, err := Decode(wire('/', 0x06, 'a'))
	s.ErrorIs(err, merr.ErrUnexpectedEOF)
}

func (s *DecodeSuite) TestUserClassAndExtended() {
	s.True(Equal(NewBinaryString([]byte("x")), s.decode(wire('C', ':', 0x08, 'F', 'o', 'o', '"', 0x06, 'x'))))

	str := wire('I', 'C', ':', 0x08, 'F', 'o', 'o', '"', 0x06, 'x', 0x06, ':', 0x06, 'E', 'T')
	s.True(Equal(NewString("x"), s.decode(str)))
	s.Equal(EncodingUTF8, s.decode(str).(RbString).Encoding().Kind)

	ext := wire('e', ':', 0x06, 'M', 'o', ':', 0x06, 'P', 0x00)
	s.True(Equal(NewObject("P"), s.decode(ext)))

	arr := wire('I', 'e', ':', 0x06, 'M', 'C', ':', 0x06, 'A', '[', 0x06, 'i', 0x06, 0x06, ':', 0x07, '@', 'a', 'i', 0x07)
	s.True(Equal(Array{Elems: []Value{Integer(1)}, Ivars: Fields{F("@a", Integer(2))}}, s.decode(arr)))

	for _, c := range []struct {
		data []byte
		want []string
	}{
		{str, []string{"class:Foo", "str:x"}},
		{ext, []string{"ext:M", "{0", "}"}},
		{arr, []string{"ext:M", "class:A", "[1", "int:1", "]"}},
	} {
		rec := &wrapperRecorder{}
		s.NoError(DecodeWith(c.data, rec))
		s.Equal(c.want, rec.events)
	}

	// 前缀不占槽位，链接回放时前缀一并读出。
	v := s.decode(wire('[', 0x07, 'C', ':', 0x06, 'A', '[', 0x00, '@', 0x06)).(Array)
	s.Require().Equal(2, v.Len())
	s.True(Equal(NewArray(), v.Elems[1]))
}

func (s *DecodeSuite) TestUserdataSlotAfterIvars() {
	// t = Time 带 zone 实例变量；[t, t.zone, t]
	data := wire('[', 0x08,
		'I', 'u', ':', 0x09, 'T', 'i', 'm', 'e', 0x06, 'X',
		0x06, ':', 0x09, 'z', 'o', 'n', 'e', '"', 0x08, 'U', 'T', 'C',
		'@', 0x06, '@', 0x07)
	v := s.decode(data).(Array)
	s.Require().Equal(3, v.Len())

	zone := RbString{Data: []byte("UTC")}
	s.True(Equal(Userdata{Class: "Time", Data: []byte("X"), Ivars: Fields{F("zone", zone)}}, v.Elems[0]))
	s.Equal(KindString, v.Elems[1].Kind())
	s.True(Equal(zone, v.Elems[1]))
	s.True(Equal(v.Elems[0], v.Elems[2]))
}

func (s *DecodeSuite) TestNestedIvarsLinearReplay() {
	const depth = 40
	body := []byte{'i', 0x00}
	var want Value = Integer(0)
	for i := 0; i < depth; i++ {
		next := append([]byte{'I', '[', 0x06}, body...)
		body = append(next, 0x06, ':', 0x07, '@', 'a', 'i', 0x06)
		want = Array{Elems: []Value{want}, Ivars: Fields{F("@a", Integer(1))}}
	}
	// 每层内部值只被额外读一遍，总读取量随深度平方增长。
	v := s.decode(wire(body...), WithMaxValues(5000))
	s.True(Equal(want, v))
}

func (s *DecodeSuite) TestDecodeIsDeterministic() {
	d, err := NewDecoder()
	s.Require().NoError(err)
	fixtures := [][]byte{
		wire('[', 0x08,
			'I', 'u', ':', 0x09, 'T', 'i', 'm', 'e', 0x06, 'X',
			0x06, ':', 0x09, 'z', 'o', 'n', 'e', '"', 0x08, 'U', 'T', 'C',
			'@', 0x06, '@', 0x07),
		wire('[', 0x07, 'I', '[', 0x06, 'i', 0x06, 0x06, ':', 0x07, '@', 'a', 'i', 0x07, '@', 0x06),
		wire('}', 0x06, 'I', '"', 0x06, 'k', 0x06, ':', 0x06, 'E', 'T', '@', 0x06, ';', 0x00),
	}
	for _, data := range fixtures {
		first, err := d.Decode(data)
		s.Require().NoError(err)
		second, err := d.Decode(data)
		s.Require().NoError(err)
		s.True(Equal(first, second), "% x", data)

		a, b := &recorder{}, &recorder{}
		s.NoError(d.DecodeWith(data, a))
		s.NoError(d.DecodeWith(data, b))
		s.Equal(a.events, b.events)
	}
}

func (s *DecodeSuite) TestVersion() {
	_, err := Decode([]byte{5, 8, '0'})
	s.ErrorIs(err, merr.ErrUnsupportedVersion)

	// 次版本不同只告警。
	v, err := Decode([]byte{4, 9, '0'})
	s.NoError(err)
	s.Equal(Nil{}, v)

	major, minor, err := ReadHeader([]byte{4, 8})
	s.NoError(err)
	s.Equal(byte(4), major)
	s.Equal(byte(8), minor)
}

func (s *DecodeSuite) TestTrailingBytesIgnored() {
	s.Equal(Nil{}, s.decode(wire('0', 'z', 'z')))
}

func (s *DecodeSuite) TestBudgets() {
	_, err := Decode(wire('0', '0', '0'), WithMaxInputSize(4))
	s.ErrorIs(err, merr.ErrInputTooLarge)

	_, err = Decode(wire('[', 0x08, 'i', 0x06, 'i', 0x06, 'i', 0x06), WithMaxValues(2))
	s.ErrorIs(err, merr.ErrInputTooLarge)

	nested := wire('[', 0x06, '[', 0x06, '[', 0x00)
	_, err = Decode(nested, WithMaxDepth(2))
	s.ErrorIs(err, merr.ErrRecursionLimitExceeded)
	s.NotNil(s.decode(nested, WithMaxDepth(3)))

	_, err = NewDecoder(WithMaxDepth(-1))
	s.ErrorIs(err, merr.ErrParameterInvalid)

	d, err := NewDecoder(WithDecoderConfig(DecoderConfig{}))
	s.NoError(err)
	s.Equal(DefaultDecoderConfig(), d.Config())
}

func (s *DecodeSuite) TestHugeCountFailsFast() {
	// 声明 2^30 个元素但没有任何数据。
	_, err := Decode(wire('[', 0x04, 0x00, 0x00, 0x00, 0x40))
	s.ErrorIs(err, merr.ErrUnexpectedEOF)
}

func (s *DecodeSuite) TestErrorPath() {
	data := wire('[', 0x07, 'i', 0x06, '[', 0x07, 'i', 0x07, 'z')
	_, err := Decode(data)
	s.ErrorIs(err, merr.ErrUnknownTag)
	s.Contains(err.Error(), "at $[1][1]")

	data = pointWire()
	data[len(data)-2] = 'z'
	_, err = Decode(data)
	s.Contains(err.Error(), "at $.@y")
}

func (s *DecodeSuite) TestVisitorErrorStopsDecoding() {
	rec := &recorder{failOn: "int:1"}
	err := DecodeWith(wire('[', 0x07, 'i', 0x06, 'i', 0x07), rec)
	s.ErrorIs(err, errStop)
	s.Equal([]string{"[2", "int:1"}, rec.events)

	s.ErrorIs(DecodeWith(wire('0'), nil), merr.ErrParameterInvalid)
}

func (s *DecodeSuite) TestDecoderReuse() {
	d, err := NewDecoder()
	s.Require().NoError(err)

	v, err := d.Decode(wire(':', 0x06, 'a'))
	s.NoError(err)
	s.Equal(Symbol("a"), v)

	// 符号表不会跨调用保留。
	_, err = d.Decode(wire(';', 0x00))
	s.ErrorIs(err, merr.ErrInvalidBackReference)
}

func TestDecode(t *testing.T) {
	suite.Run(t, new(DecodeSuite))
}
