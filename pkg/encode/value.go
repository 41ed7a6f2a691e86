package encode

// Value 是快照编码器的输入值模型。
//
// 值空间是一个封闭的变体集合：
//   - 原始值：String / Number / Bool / Null / Undefined
//   - 函数值：Func（携带声明参数个数与可选的零参 thunk）
//   - 复合值：Array / Object / Map / Set
//
// 复合值一律使用指针类型，接口相等即引用相等，
// 编码器据此在一次遍历内识别环与共享引用。
type Value interface {
	isValue()
}

// StringValue 表示字符串原始值。
type StringValue struct {
	Val string
}

// NumberValue 表示数值原始值。
// 非有限值（NaN / ±Inf）在目标文本记法中没有字面量，编码时退化为 null。
type NumberValue struct {
	Val float64
}

// BoolValue 表示布尔原始值。
type BoolValue struct {
	Val bool
}

// NullValue 表示空值。
type NullValue struct{}

// UndefinedValue 表示宿主中“未定义”的值。
//
// 目标文本记法没有对应字面量，编码遵循一条固定规则：
// 作为 Object 字段值时整个字段被省略；出现在其它任何位置时编码为 null。
type UndefinedValue struct{}

// FuncValue 表示函数值。
//
// NumParams 为声明参数个数。Invoke 为零参 thunk，仅当
// NumParams == 0 且编码器开启函数调用时会被执行；
// 其返回的错误会原样中止整个编码过程。
type FuncValue struct {
	NumParams int
	Invoke    func() (Value, error)
}

// ArrayValue 表示有序序列。
type ArrayValue struct {
	Elems []Value
}

// Field 是 Object 中的一个键值对。
type Field struct {
	Key string
	Val Value
}

// ObjectValue 表示键值记录，字段保持插入顺序。
type ObjectValue struct {
	Fields []Field
}

// Entry 是 Map 中的一个键值对，键本身也是 Value，允许非字符串键。
type Entry struct {
	Key Value
	Val Value
}

// MapValue 表示关联映射，条目保持插入顺序。
type MapValue struct {
	Entries []Entry
}

// SetValue 表示集合，元素保持插入顺序。
type SetValue struct {
	Elems []Value
}

func (StringValue) isValue()    {}
func (NumberValue) isValue()    {}
func (BoolValue) isValue()      {}
func (NullValue) isValue()      {}
func (UndefinedValue) isValue() {}
func (*FuncValue) isValue()     {}
func (*ArrayValue) isValue()    {}
func (*ObjectValue) isValue()   {}
func (*MapValue) isValue()      {}
func (*SetValue) isValue()      {}

// String 构造字符串值。
func String(s string) Value {
	return StringValue{Val: s}
}

// Number 构造数值。
func Number(f float64) Value {
	return NumberValue{Val: f}
}

// Bool 构造布尔值。
func Bool(b bool) Value {
	return BoolValue{Val: b}
}

// Null 构造空值。
func Null() Value {
	return NullValue{}
}

// Undefined 构造未定义值。
func Undefined() Value {
	return UndefinedValue{}
}

// Func 构造一个携带声明参数个数的函数值。
// thunk 可以为 nil，此时该函数永远以占位符形式编码。
func Func(numParams int, thunk func() (Value, error)) *FuncValue {
	return &FuncValue{
		NumParams: numParams,
		Invoke:    thunk,
	}
}

// Array 构造有序序列。
func Array(elems ...Value) *ArrayValue {
	return &ArrayValue{Elems: elems}
}

// Object 构造一个空的键值记录。
func Object() *ObjectValue {
	return &ObjectValue{}
}

// Add 按插入顺序追加一个字段并返回自身，便于链式构造。
func (o *ObjectValue) Add(key string, val Value) *ObjectValue {
	o.Fields = append(o.Fields, Field{Key: key, Val: val})
	return o
}

// Get 返回指定字段的值。
// 第二个返回值表示字段是否存在。
func (o *ObjectValue) Get(key string) (Value, bool) {
	for i := range o.Fields {
		if o.Fields[i].Key == key {
			return o.Fields[i].Val, true
		}
	}
	return nil, false
}

// Map 构造一个空的关联映射。
func Map() *MapValue {
	return &MapValue{}
}

// Add 按插入顺序追加一个条目并返回自身，便于链式构造。
func (m *MapValue) Add(key, val Value) *MapValue {
	m.Entries = append(m.Entries, Entry{Key: key, Val: val})
	return m
}

// Set 构造集合。
// 元素的去重由调用方负责，编码器只保证按给定顺序输出。
func Set(elems ...Value) *SetValue {
	return &SetValue{Elems: elems}
}
