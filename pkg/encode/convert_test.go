package encode

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/snap-garden-go/pkg/util/merr"
)

type ConvertSuite struct {
	suite.Suite
}

func (s *ConvertSuite) encodeAny(v any, opts ...Option) string {
	val, err := FromAny(v)
	s.NoError(err)
	out, err := Stringify(val, opts...)
	s.NoError(err)
	return out
}

func (s *ConvertSuite) TestPrimitives() {
	s.Equal(`null`, s.encodeAny(nil))
	s.Equal(`true`, s.encodeAny(true))
	s.Equal(`"go"`, s.encodeAny("go"))
	s.Equal(`42`, s.encodeAny(42))
	s.Equal(`42`, s.encodeAny(uint8(42)))
	s.Equal(`2.5`, s.encodeAny(2.5))
}

func (s *ConvertSuite) TestSlice() {
	s.Equal(`[1,2,3]`, s.encodeAny([]int{1, 2, 3}))
	s.Equal(`null`, s.encodeAny([]int(nil)))
	s.Equal(`[[1],["a"]]`, s.encodeAny([]any{[]int{1}, []string{"a"}}))
	s.Equal(`[1,2]`, s.encodeAny([2]int{1, 2}))
}

func (s *ConvertSuite) TestStruct() {
	type inner struct {
		Flag bool `json:"flag"`
	}
	type outer struct {
		Name    string `json:"name"`
		Skipped string `json:"-"`
		Plain   int
		Inner   inner `json:"inner"`
		hidden  int
	}

	v := outer{Name: "snap", Skipped: "x", Plain: 7, Inner: inner{Flag: true}, hidden: 1}
	s.Equal(`{"name":"snap","Plain":7,"inner":{"flag":true}}`, s.encodeAny(v))
}

func (s *ConvertSuite) TestMapSortedByKey() {
	// Go map 的迭代顺序随机，转换时按键的字符串形式排序，保证输出确定。
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	want := `{"kind":"Map","value":[["a",1],["b",2],["c",3]]}`
	for i := 0; i < 10; i++ {
		s.Equal(want, s.encodeAny(m))
	}

	s.Equal(`null`, s.encodeAny(map[string]int(nil)))
	s.Equal(`{"kind":"Map","value":[[1,"one"],[2,"two"]]}`, s.encodeAny(map[int]string{2: "two", 1: "one"}))
}

func (s *ConvertSuite) TestPointerIdentity() {
	type node struct {
		Name string `json:"name"`
	}
	shared := &node{Name: "n"}
	out := s.encodeAny([]any{shared, shared})
	s.Equal(`[{"name":"n"},"[[ cyclic ref *1 ]]"]`, out)

	// 内容相同但引用不同的值不会被合并。
	out = s.encodeAny([]any{&node{Name: "n"}, &node{Name: "n"}})
	s.Equal(`[{"name":"n"},{"name":"n"}]`, out)
}

func (s *ConvertSuite) TestCyclicSlice() {
	cyc := make([]any, 1)
	cyc[0] = cyc
	s.Equal(`["[[ cyclic ref *0 ]]"]`, s.encodeAny(cyc))

	// 环出现在更深的位置时同样收敛。
	nested := make([]any, 2)
	nested[0] = "head"
	nested[1] = []any{nested}
	s.Equal(`["head",["[[ cyclic ref *0 ]]"]]`, s.encodeAny(nested))
}

func (s *ConvertSuite) TestSharedSliceIdentity() {
	shared := []int{1}
	s.Equal(`[[1],"[[ cyclic ref *1 ]]"]`, s.encodeAny([]any{shared, shared}))
}

func (s *ConvertSuite) TestCyclicStruct() {
	type node struct {
		Name string `json:"name"`
		Next *node  `json:"next"`
	}
	n := &node{Name: "loop"}
	n.Next = n
	s.Equal(`{"name":"loop","next":"[[ cyclic ref *0 ]]"}`, s.encodeAny(n))
}

func (s *ConvertSuite) TestFunc() {
	s.Equal(`"[[ function params=2 ]]"`, s.encodeAny(func(a, b int) int { return a + b }))
	s.Equal(`"[[ function params=1 ]]"`, s.encodeAny(func(int) {}))

	thunk := func() int { return 5 }
	s.Equal(`"[[ function params=0 ]]"`, s.encodeAny(thunk))
	s.Equal(`{"kind":"Function","result":5}`, s.encodeAny(thunk, WithFunctionInvocation()))

	s.Equal(`null`, s.encodeAny((func())(nil)))
}

func (s *ConvertSuite) TestFuncReturnShapes() {
	s.Equal(`{"kind":"Function","result":null}`, s.encodeAny(func() {}, WithFunctionInvocation()))
	s.Equal(`{"kind":"Function","result":null}`, s.encodeAny(func() error { return nil }, WithFunctionInvocation()))

	mockErr := errors.New("mock failure")
	val, err := FromAny(func() error { return mockErr })
	s.NoError(err)
	_, err = Stringify(val, WithFunctionInvocation())
	s.ErrorIs(err, mockErr)

	_, err = Stringify(s.mustConvert(func() (int, error) { return 9, nil }))
	s.NoError(err)
	out, err := Stringify(s.mustConvert(func() (int, error) { return 9, nil }), WithFunctionInvocation())
	s.NoError(err)
	s.Equal(`{"kind":"Function","result":9}`, out)
}

func (s *ConvertSuite) mustConvert(v any) Value {
	val, err := FromAny(v)
	s.NoError(err)
	return val
}

func (s *ConvertSuite) TestValuePassthrough() {
	obj := Object().Add("k", Number(1))
	val, err := FromAny(obj)
	s.NoError(err)
	s.Same(obj, val)
}

func (s *ConvertSuite) TestUnsupportedKind() {
	_, err := FromAny(make(chan int))
	s.Error(err)
	s.ErrorIs(err, merr.ErrConvertUnsupported)

	_, err = FromAny(complex(1, 2))
	s.ErrorIs(err, merr.ErrConvertUnsupported)
}

func TestConvert(t *testing.T) {
	suite.Run(t, new(ConvertSuite))
}
