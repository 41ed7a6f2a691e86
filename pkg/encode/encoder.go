package encode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lk2023060901/snap-garden-go/internal/json"
)

// Encoder 将任意 Value 图编码为确定性的 JSON 文本快照。
//
// 编码是一次深度优先的同步遍历：
//   - 每个复合值在进入时（先于其子节点）按引用身份登记到 visited 表，
//     编号为登记时刻的表大小；再次遇到同一引用时输出环引用标记并不再下钻，
//     这保证了自引用图上的终止性。
//   - Map / Set 在目标记法中没有原生语法，重新表达为带 kind 判别字段的记录。
//   - 零参函数在开启调用时被同步执行，返回值内联；其余函数输出
//     携带声明参数个数的占位符，保持输出与函数身份无关。
//
// 同一个 Value 图与同一组选项下，两次编码的输出逐字节一致
// （被调用函数自身的非确定性除外）。
//
// Encoder 本身无状态，可并发使用；visited 表的生命周期只覆盖
// 单次 Encode 调用，调用之间不共享。
type Encoder struct {
	opt *encoderOption
}

// NewEncoder 根据给定选项创建 Encoder。
func NewEncoder(opts ...Option) *Encoder {
	opt := defaultEncoderOption()
	for _, o := range opts {
		o(opt)
	}
	return &Encoder{opt: opt}
}

// Stringify 以一次性 Encoder 编码 v，是 NewEncoder(opts...).Encode(v) 的便捷写法。
func Stringify(v Value, opts ...Option) (string, error) {
	return NewEncoder(opts...).Encode(v)
}

// Encode 将 v 编码为 JSON 文本。
//
// 唯一的失败来源是被调用函数返回错误；该错误不做任何包装，
// 原样返回给调用方，已产生的部分输出被丢弃。
// 被调用函数的 panic 同样不被拦截。
func (e *Encoder) Encode(v Value) (string, error) {
	var b strings.Builder
	visited := make(map[Value]int)
	if err := e.encode(&b, v, visited); err != nil {
		return "", err
	}
	return b.String(), nil
}

// encode 递归编码单个值。visited 为本次调用私有的引用身份登记表。
func (e *Encoder) encode(b *strings.Builder, v Value, visited map[Value]int) error {
	switch val := v.(type) {
	case nil, NullValue:
		b.WriteString("null")
		return nil

	case UndefinedValue:
		// 非字段位置的 undefined 统一退化为 null；
		// 字段位置的省略在 Object 分支处理。
		b.WriteString("null")
		return nil

	case BoolValue:
		b.WriteString(strconv.FormatBool(val.Val))
		return nil

	case NumberValue:
		if math.IsNaN(val.Val) || math.IsInf(val.Val, 0) {
			b.WriteString("null")
			return nil
		}
		s, err := json.MarshalToString(val.Val)
		if err != nil {
			return err
		}
		b.WriteString(s)
		return nil

	case StringValue:
		s, err := json.MarshalToString(val.Val)
		if err != nil {
			return err
		}
		b.WriteString(s)
		return nil

	case *FuncValue:
		return e.encodeFunc(b, val, visited)
	}

	// 余下全部为复合值。绕过构造器拼出的 typed-nil
	// 复合值没有可引用的身份，按 null 对待。
	if isNilComposite(v) {
		b.WriteString("null")
		return nil
	}

	// 先查引用身份登记表。
	if id, ok := visited[v]; ok {
		fmt.Fprintf(b, `"[[ cyclic ref *%d ]]"`, id)
		return nil
	}
	visited[v] = len(visited)

	switch val := v.(type) {
	case *ArrayValue:
		b.WriteByte('[')
		for i, elem := range val.Elems {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := e.encode(b, elem, visited); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil

	case *ObjectValue:
		b.WriteByte('{')
		first := true
		for _, f := range val.Fields {
			// undefined 字段整体省略。
			if _, undef := f.Val.(UndefinedValue); undef {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			key, err := json.MarshalToString(f.Key)
			if err != nil {
				return err
			}
			b.WriteString(key)
			b.WriteByte(':')
			if err := e.encode(b, f.Val, visited); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil

	case *MapValue:
		b.WriteString(`{"kind":"Map","value":[`)
		for i, ent := range val.Entries {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('[')
			if err := e.encode(b, ent.Key, visited); err != nil {
				return err
			}
			b.WriteByte(',')
			if err := e.encode(b, ent.Val, visited); err != nil {
				return err
			}
			b.WriteByte(']')
		}
		b.WriteString(`]}`)
		return nil

	case *SetValue:
		b.WriteString(`{"kind":"Set","value":[`)
		for i, elem := range val.Elems {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := e.encode(b, elem, visited); err != nil {
				return err
			}
		}
		b.WriteString(`]}`)
		return nil

	default:
		panic(fmt.Sprintf("unsupported value type: %T for encode operation", v))
	}
}

func isNilComposite(v Value) bool {
	switch val := v.(type) {
	case *ArrayValue:
		return val == nil
	case *ObjectValue:
		return val == nil
	case *MapValue:
		return val == nil
	case *SetValue:
		return val == nil
	}
	return false
}

// encodeFunc 编码函数值。
// 仅当开启调用、声明参数为零且存在 thunk 时才会执行函数，
// 返回值以 Function 标记内联，并继续复用同一张登记表。
func (e *Encoder) encodeFunc(b *strings.Builder, val *FuncValue, visited map[Value]int) error {
	if val == nil {
		b.WriteString("null")
		return nil
	}
	if e.opt.invokeFunctions && val.NumParams == 0 && val.Invoke != nil {
		result, err := val.Invoke()
		if err != nil {
			return err
		}
		b.WriteString(`{"kind":"Function","result":`)
		if err := e.encode(b, result, visited); err != nil {
			return err
		}
		b.WriteByte('}')
		return nil
	}
	fmt.Fprintf(b, `"[[ function params=%d ]]"`, val.NumParams)
	return nil
}
