package export

import (
	"math"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"

	"github.com/lk2023060901/rbmarshal-go/pkg/marshal"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

type ExportSuite struct {
	suite.Suite
	data []byte
}

func (s *ExportSuite) SetupSuite() {
	v := marshal.NewArray(
		marshal.NewObject("Point", marshal.F("@x", marshal.Integer(1)), marshal.F("@y", marshal.Integer(2))),
		marshal.NewHash(marshal.Integer(1), marshal.NewString("one"), marshal.Symbol("k"), marshal.Float(math.NaN())),
		marshal.NewBinaryString([]byte{0xff}),
		marshal.Nil{},
		marshal.Bool(true),
		marshal.RbHash{Entries: []marshal.HashEntry{{Key: marshal.Symbol("a"), Value: marshal.Float(0.5)}}, Default: marshal.Integer(0)},
	)
	data, err := marshal.Encode(v)
	s.Require().NoError(err)
	s.data = data
}

func (s *ExportSuite) TestTree() {
	t, err := Tree(s.data)
	s.Require().NoError(err)

	arr, ok := t.([]any)
	s.Require().True(ok)
	s.Require().Len(arr, 6)

	point := arr[0].(*Map)
	s.Equal([]Pair{{ClassKey, "Point"}, {"@x", int64(1)}, {"@y", int64(2)}}, point.Pairs)

	hash := arr[1].(*Map)
	s.Equal(int64(1), hash.Pairs[0].Key)
	s.Equal("one", hash.Pairs[0].Value)
	v, ok := hash.Get("k")
	s.True(ok)
	s.True(math.IsNaN(v.(float64)))

	s.Equal([]byte{0xff}, arr[2])
	s.Nil(arr[3])
	s.Equal(true, arr[4])

	// 默认值被丢弃。
	s.Equal([]Pair{{"a", 0.5}}, arr[5].(*Map).Pairs)
}

func (s *ExportSuite) TestJSON() {
	out, err := Convert(s.data, FormatJSON)
	s.Require().NoError(err)
	s.Equal(`[{"__class":"Point","@x":1,"@y":2},{"1":"one","k":"nan"},"/w==",null,true,{"a":0.5}]`, string(out))

	indented, err := Convert(s.data, FormatJSON, WithIndent(true))
	s.Require().NoError(err)
	s.Contains(string(indented), "\n  ")
}

func (s *ExportSuite) TestConvertValue() {
	v, err := marshal.Decode(s.data)
	s.Require().NoError(err)
	for _, format := range []Format{FormatJSON, FormatYAML, FormatCBOR} {
		want, err := Convert(s.data, format)
		s.Require().NoError(err)
		got, err := ConvertValue(v, format)
		s.Require().NoError(err)
		s.Equal(want, got, format)
	}

	_, err = ConvertValue(nil, FormatJSON)
	s.ErrorIs(err, merr.ErrUnrepresentableValue)
}

func (s *ExportSuite) TestYAML() {
	out, err := Convert(s.data, FormatYAML)
	s.Require().NoError(err)

	var doc yaml.Node
	s.Require().NoError(yaml.Unmarshal(out, &doc))
	root := doc.Content[0]
	s.Require().Equal(yaml.SequenceNode, root.Kind)
	s.Require().Len(root.Content, 6)

	point := root.Content[0]
	s.Require().Equal(yaml.MappingNode, point.Kind)
	keys := []string{}
	for i := 0; i < len(point.Content); i += 2 {
		keys = append(keys, point.Content[i].Value)
	}
	s.Equal([]string{ClassKey, "@x", "@y"}, keys)
	s.Equal("!!binary", root.Content[2].Tag)
}

func (s *ExportSuite) TestCBOR() {
	out, err := Convert(s.data, FormatCBOR)
	s.Require().NoError(err)

	var arr []any
	s.Require().NoError(cbor.Unmarshal(out, &arr))
	s.Require().Len(arr, 6)

	point := arr[0].(map[any]any)
	s.Equal("Point", point[ClassKey])
	s.Equal(uint64(2), point["@y"])

	hash := arr[1].(map[any]any)
	s.Equal("one", hash[uint64(1)])
	s.True(math.IsNaN(hash["k"].(float64)))
	s.Equal([]byte{0xff}, arr[2])
}

func (s *ExportSuite) TestDecodeError() {
	_, err := Convert(s.data[:len(s.data)-1], FormatJSON)
	s.ErrorIs(err, merr.ErrUnexpectedEOF)

	_, err = Convert(s.data, FormatJSON, WithDecoderOptions(marshal.WithMaxDepth(1)))
	s.ErrorIs(err, merr.ErrRecursionLimitExceeded)
}

func TestExport(t *testing.T) {
	suite.Run(t, new(ExportSuite))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "YAML": FormatYAML, "yml": FormatYAML, "cbor": FormatCBOR} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	_, err = NewSerializer("xml")
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestCBORHead(t *testing.T) {
	assert.Equal(t, []byte{0xa3}, cborHead(5, 3))
	assert.Equal(t, []byte{0xb8, 0x18}, cborHead(5, 24))
	assert.Equal(t, []byte{0xb9, 0x01, 0x00}, cborHead(5, 256))
	assert.Equal(t, []byte{0xba, 0x00, 0x01, 0x00, 0x00}, cborHead(5, 65536))
}

func TestTreeBuilderCapsPrealloc(t *testing.T) {
	b := &treeBuilder{}
	require.NoError(t, b.BeginArray(1<<30))
	require.NoError(t, b.BeginHash(1<<30))
	require.NoError(t, b.BeginObject("Big", 1<<30))
	require.Len(t, b.stack, 3)
	assert.LessOrEqual(t, cap(b.stack[0].arr), maxPrealloc)
	assert.LessOrEqual(t, cap(b.stack[1].m.Pairs), maxPrealloc)
	assert.LessOrEqual(t, cap(b.stack[2].m.Pairs), maxPrealloc+1)

	// 声明长度较小时仍按声明预分配。
	small := &treeBuilder{}
	require.NoError(t, small.BeginArray(3))
	assert.Equal(t, 3, cap(small.stack[0].arr))
}
