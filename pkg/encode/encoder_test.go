package encode

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/suite"
)

type EncoderSuite struct {
	suite.Suite
}

func (s *EncoderSuite) stringify(v Value, opts ...Option) string {
	out, err := Stringify(v, opts...)
	s.NoError(err)
	return out
}

func (s *EncoderSuite) TestPrimitives() {
	s.Equal(`null`, s.stringify(Null()))
	s.Equal(`null`, s.stringify(nil))
	s.Equal(`true`, s.stringify(Bool(true)))
	s.Equal(`false`, s.stringify(Bool(false)))
	s.Equal(`1`, s.stringify(Number(1)))
	s.Equal(`1.5`, s.stringify(Number(1.5)))
	s.Equal(`-2`, s.stringify(Number(-2)))
	s.Equal(`"hello"`, s.stringify(String("hello")))
	s.Equal(`"换行\n"`, s.stringify(String("换行\n")))
}

func (s *EncoderSuite) TestNonFiniteNumbers() {
	// 目标记法没有 NaN / Inf 字面量，统一退化为 null。
	s.Equal(`null`, s.stringify(Number(math.NaN())))
	s.Equal(`null`, s.stringify(Number(math.Inf(1))))
	s.Equal(`null`, s.stringify(Number(math.Inf(-1))))
	s.Equal(`[null,null]`, s.stringify(Array(Number(math.NaN()), Number(math.Inf(1)))))
}

func (s *EncoderSuite) TestUndefined() {
	// 对象字段位置整体省略，其余位置为 null。
	obj := Object().Add("a", Undefined()).Add("b", Number(1))
	s.Equal(`{"b":1}`, s.stringify(obj))

	allUndef := Object().Add("a", Undefined())
	s.Equal(`{}`, s.stringify(allUndef))

	s.Equal(`null`, s.stringify(Undefined()))
	s.Equal(`[null]`, s.stringify(Array(Undefined())))
	m := Map().Add(Undefined(), Undefined())
	s.Equal(`{"kind":"Map","value":[[null,null]]}`, s.stringify(m))
}

func (s *EncoderSuite) TestArrayAndObject() {
	s.Equal(`[]`, s.stringify(Array()))
	s.Equal(`{}`, s.stringify(Object()))
	s.Equal(`[1,"two",true,null]`, s.stringify(Array(Number(1), String("two"), Bool(true), Null())))

	obj := Object().
		Add("name", String("snap")).
		Add("tags", Array(String("a"), String("b"))).
		Add("inner", Object().Add("ok", Bool(true)))
	s.Equal(`{"name":"snap","tags":["a","b"],"inner":{"ok":true}}`, s.stringify(obj))
}

func (s *EncoderSuite) TestObjectFieldOrder() {
	// 字段按插入顺序输出，不排序。
	obj := Object().Add("z", Number(1)).Add("a", Number(2))
	s.Equal(`{"z":1,"a":2}`, s.stringify(obj))
}

func (s *EncoderSuite) TestSelfCycle() {
	obj := Object()
	obj.Add("self", obj)
	s.Equal(`{"self":"[[ cyclic ref *0 ]]"}`, s.stringify(obj))

	arr := Array()
	arr.Elems = append(arr.Elems, arr)
	s.Equal(`["[[ cyclic ref *0 ]]"]`, s.stringify(arr))

	set := Set()
	set.Elems = append(set.Elems, set)
	s.Equal(`{"kind":"Set","value":["[[ cyclic ref *0 ]]"]}`, s.stringify(set))
}

func (s *EncoderSuite) TestMutualCycle() {
	a := Object()
	b := Object()
	a.Add("b", b)
	b.Add("a", a)
	// a 登记为 0，b 登记为 1，回边指向 0。
	s.Equal(`{"b":{"a":"[[ cyclic ref *0 ]]"}}`, s.stringify(a))
}

func (s *EncoderSuite) TestSharedReference() {
	shared := Object().Add("x", Number(1))
	root := Object().Add("a", shared).Add("b", shared)
	// 共享子对象第一次出现时登记为 1，第二次出现输出回引标记。
	s.Equal(`{"a":{"x":1},"b":"[[ cyclic ref *1 ]]"}`, s.stringify(root))
}

func (s *EncoderSuite) TestDistinctEmptyObjectsNotConflated() {
	// 引用身份基于指针，两个内容相同的空对象不会被误判为同一个。
	s.Equal(`[{},{}]`, s.stringify(Array(Object(), Object())))
	s.Equal(`[[],[]]`, s.stringify(Array(Array(), Array())))
}

func (s *EncoderSuite) TestMap() {
	s.Equal(`{"kind":"Map","value":[]}`, s.stringify(Map()))

	m := Map().Add(String("k"), Number(1))
	s.Equal(`{"kind":"Map","value":[["k",1]]}`, s.stringify(m))

	// 键可以是任意值，包括复合值。
	m2 := Map().
		Add(Number(1), String("one")).
		Add(Array(Number(2)), Bool(true))
	s.Equal(`{"kind":"Map","value":[[1,"one"],[[2],true]]}`, s.stringify(m2))
}

func (s *EncoderSuite) TestMapCycle() {
	m := Map()
	m.Add(String("self"), m)
	s.Equal(`{"kind":"Map","value":[["self","[[ cyclic ref *0 ]]"]]}`, s.stringify(m))
}

func (s *EncoderSuite) TestSet() {
	s.Equal(`{"kind":"Set","value":[]}`, s.stringify(Set()))
	s.Equal(`{"kind":"Set","value":[1,2]}`, s.stringify(Set(Number(1), Number(2))))

	nested := Set(Object().Add("k", String("v")))
	s.Equal(`{"kind":"Set","value":[{"k":"v"}]}`, s.stringify(nested))
}

func (s *EncoderSuite) TestFunctionPlaceholder() {
	s.Equal(`"[[ function params=2 ]]"`, s.stringify(Func(2, nil)))
	s.Equal(`"[[ function params=0 ]]"`, s.stringify(Func(0, nil)))

	// 未开启调用时，即使存在 thunk 也只输出占位符。
	fn := Func(0, func() (Value, error) {
		s.Fail("thunk should not be invoked")
		return nil, nil
	})
	s.Equal(`"[[ function params=0 ]]"`, s.stringify(fn))
}

func (s *EncoderSuite) TestFunctionInvocation() {
	fn := Func(0, func() (Value, error) {
		return Number(5), nil
	})
	s.Equal(`{"kind":"Function","result":5}`, s.stringify(fn, WithFunctionInvocation()))

	// 带参函数即使开启调用也只输出占位符。
	s.Equal(`"[[ function params=2 ]]"`, s.stringify(Func(2, nil), WithFunctionInvocation()))
}

func (s *EncoderSuite) TestFunctionResultSharesRegistry() {
	// 函数返回值与外层图共用同一张登记表，
	// 返回已遇到的引用时输出回引标记。
	root := Object()
	root.Add("fn", Func(0, func() (Value, error) {
		return root, nil
	}))
	s.Equal(`{"fn":{"kind":"Function","result":"[[ cyclic ref *0 ]]"}}`, s.stringify(root, WithFunctionInvocation()))
}

func (s *EncoderSuite) TestFunctionError() {
	mockErr := errors.New("mock invoke failure")
	fn := Func(0, func() (Value, error) {
		return nil, mockErr
	})
	out, err := Stringify(Array(Number(1), fn), WithFunctionInvocation())
	s.ErrorIs(err, mockErr)
	s.Empty(out)
}

func (s *EncoderSuite) TestFunctionPanicPropagates() {
	fn := Func(0, func() (Value, error) {
		panic("boom")
	})
	s.PanicsWithValue("boom", func() {
		_, _ = Stringify(fn, WithFunctionInvocation())
	})
}

func (s *EncoderSuite) TestDeterminism() {
	shared := Array(Number(1), Number(2))
	root := Object().
		Add("shared", shared).
		Add("again", shared).
		Add("map", Map().Add(String("k"), Set(Number(3)))).
		Add("fn", Func(1, nil))

	first := s.stringify(root)
	for i := 0; i < 10; i++ {
		s.Equal(first, s.stringify(root))
	}
}

func (s *EncoderSuite) TestRegistryFreshPerCall() {
	// 登记表不跨调用保留，重复编码同一个值不会出现回引标记。
	obj := Object().Add("x", Number(1))
	enc := NewEncoder()
	for i := 0; i < 3; i++ {
		out, err := enc.Encode(obj)
		s.NoError(err)
		s.Equal(`{"x":1}`, out)
	}
}

func (s *EncoderSuite) TestConcurrentEncode() {
	shared := Object().Add("x", Number(1))
	root := Object().Add("a", shared).Add("b", shared)
	want := s.stringify(root)

	enc := NewEncoder()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out, err := enc.Encode(root)
				s.NoError(err)
				s.Equal(want, out)
			}
		}()
	}
	wg.Wait()
}

func (s *EncoderSuite) TestOutputIsValidJSON() {
	// 环引用标记也是普通字符串，输出始终是合法 JSON。
	values := []Value{
		Object().Add("n", Number(1.25)).Add("s", String("中文")),
		Map().Add(Array(Number(1)), Set(String("x"))),
		Func(3, nil),
	}
	cyclic := Object()
	cyclic.Add("self", cyclic)
	values = append(values, cyclic)

	for _, v := range values {
		out := s.stringify(v)
		s.True(jsoniter.Valid([]byte(out)), "invalid json: %s", out)
	}
}

func (s *EncoderSuite) TestTypedNilComposites() {
	// 构造器不会产生 typed-nil 复合值，但输入是接口，挡不住调用方拼出来。
	s.Equal(`null`, s.stringify((*ArrayValue)(nil)))
	s.Equal(`null`, s.stringify((*ObjectValue)(nil)))
	s.Equal(`null`, s.stringify((*MapValue)(nil)))
	s.Equal(`null`, s.stringify((*SetValue)(nil)))
	s.Equal(`null`, s.stringify((*FuncValue)(nil)))
	s.Equal(`[null]`, s.stringify(Array((*ObjectValue)(nil))))
}

func (s *EncoderSuite) TestUnsupportedValuePanics() {
	s.Panics(func() {
		_, _ = Stringify(bogusValue{})
	})
}

type bogusValue struct{}

func (bogusValue) isValue() {}

func TestEncoder(t *testing.T) {
	suite.Run(t, new(EncoderSuite))
}

func BenchmarkEncode(b *testing.B) {
	root := Object()
	for i := 0; i < 32; i++ {
		root.Add(fmt.Sprintf("field%d", i), Array(Number(float64(i)), String("payload")))
	}
	enc := NewEncoder()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := enc.Encode(root); err != nil {
			b.Fatal(err)
		}
	}
}
