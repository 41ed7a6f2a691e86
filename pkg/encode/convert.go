package encode

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/lk2023060901/snap-garden-go/pkg/util/merr"
)

// FromAny 通过反射把原生 Go 值转换为 Value 模型。
//
// 转换规则：
//   - nil -> Null；bool / string / 整型 / 浮点 -> 对应原始值；
//   - 切片、数组 -> Array；结构体 -> Object（导出字段，声明顺序，
//     字段名可被 json tag 覆盖，tag 为 "-" 的字段跳过）；
//   - Go map -> Map。map 的迭代顺序是随机的，为保证编码输出确定性，
//     条目按键的字符串形式排序后写入；
//   - 函数 -> Func，声明参数个数取自函数签名；零参函数会生成 thunk，
//     支持的返回形态为 ()、(T)、(error) 与 (T, error)；
//   - 指针、切片和 map 保持引用身份：同一个引用多次出现时映射到同一个
//     复合值，因此经由它们构成的 Go 环在编码时会正确出现环引用标记，
//     转换对任意自引用图都能终止。
//
// chan、complex、unsafe.Pointer 等无法落到值模型的类型返回
// ErrConvertUnsupported。
//
// 返回的 Value 图不可与转换过程并发共享；零参 thunk 会复用转换器的
// 身份缓存，应在单次编码流程内使用。
func FromAny(v any) (Value, error) {
	c := &converter{seen: make(map[identityKey]Value)}
	return c.convert(reflect.ValueOf(v))
}

// converter 为一次 FromAny 调用保存指针身份缓存。
type converter struct {
	// seen 以（类型，地址）为键，保证同一引用只生成一个复合值。
	// 不能直接用装箱后的值做键：map 类型的接口比较会 panic。
	seen map[identityKey]Value
}

// identityKey 是引用身份的查找键。
type identityKey struct {
	typ  reflect.Type
	addr uintptr
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func (c *converter) convert(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}

	// 已实现 Value 的输入直接透传。
	if rv.CanInterface() {
		if val, ok := rv.Interface().(Value); ok {
			return val, nil
		}
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return c.convert(rv.Elem())

	case reflect.Bool:
		return Bool(rv.Bool()), nil

	case reflect.String:
		return String(rv.String()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(float64(rv.Uint())), nil

	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil

	case reflect.Func:
		return c.convertFunc(rv)

	case reflect.Slice, reflect.Array:
		return c.convertSlice(rv)

	case reflect.Map:
		return c.convertMap(rv)

	case reflect.Struct:
		return c.convertStruct(rv)

	case reflect.Pointer:
		return c.convertPointer(rv)

	default:
		return nil, merr.WrapErrConvertUnsupported(rv.Kind().String())
	}
}

func (c *converter) convertFunc(rv reflect.Value) (Value, error) {
	if rv.IsNil() {
		return Null(), nil
	}
	t := rv.Type()
	fn := &FuncValue{NumParams: t.NumIn()}
	if t.NumIn() == 0 && !t.IsVariadic() {
		fn.Invoke = func() (Value, error) {
			return c.invoke(rv)
		}
	}
	return fn, nil
}

// invoke 执行零参函数并转换其返回值。
// 函数自身返回的 error 原样向上传递。
func (c *converter) invoke(rv reflect.Value) (Value, error) {
	outs := rv.Call(nil)
	switch len(outs) {
	case 0:
		return Undefined(), nil
	case 1:
		if outs[0].Type().Implements(errType) {
			if !outs[0].IsNil() {
				return nil, outs[0].Interface().(error)
			}
			return Null(), nil
		}
		return c.convert(outs[0])
	case 2:
		if !outs[1].IsNil() {
			return nil, outs[1].Interface().(error)
		}
		return c.convert(outs[0])
	default:
		return nil, merr.WrapErrConvertUnsupported(
			fmt.Sprintf("func with %d return values", len(outs)))
	}
}

func (c *converter) convertSlice(rv reflect.Value) (Value, error) {
	arr := Array()
	if rv.Kind() == reflect.Slice {
		if rv.IsNil() {
			return Null(), nil
		}
		// 切片和 map 一样是引用类型，先登记身份再下钻，
		// 自引用切片才能收敛到环引用而不是无限递归。
		key := identityKey{typ: rv.Type(), addr: rv.Pointer()}
		if cached, ok := c.seen[key]; ok {
			return cached, nil
		}
		c.seen[key] = arr
	}
	for i := 0; i < rv.Len(); i++ {
		elem, err := c.convert(rv.Index(i))
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, elem)
	}
	return arr, nil
}

func (c *converter) convertMap(rv reflect.Value) (Value, error) {
	if rv.IsNil() {
		return Null(), nil
	}
	key := identityKey{typ: rv.Type(), addr: rv.Pointer()}
	if cached, ok := c.seen[key]; ok {
		return cached, nil
	}
	m := Map()
	c.seen[key] = m

	type rawEntry struct {
		sortKey string
		key     reflect.Value
	}
	entries := make([]rawEntry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		entries = append(entries, rawEntry{
			sortKey: fmt.Sprintf("%v", k.Interface()),
			key:     k,
		})
	}
	slices.SortFunc(entries, func(a, b rawEntry) int {
		return strings.Compare(a.sortKey, b.sortKey)
	})

	for _, ent := range entries {
		kv, err := c.convert(ent.key)
		if err != nil {
			return nil, err
		}
		vv, err := c.convert(rv.MapIndex(ent.key))
		if err != nil {
			return nil, err
		}
		m.Add(kv, vv)
	}
	return m, nil
}

func (c *converter) convertStruct(rv reflect.Value) (Value, error) {
	obj := Object()
	if err := c.fillStruct(obj, rv); err != nil {
		return nil, err
	}
	return obj, nil
}

func (c *converter) fillStruct(obj *ObjectValue, rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		val, err := c.convert(rv.Field(i))
		if err != nil {
			return err
		}
		obj.Add(name, val)
	}
	return nil
}

// convertPointer 解引用指针并维持引用身份。
// 指向复合类型的指针会先登记空壳再填充内容，保证自引用结构可以收敛。
func (c *converter) convertPointer(rv reflect.Value) (Value, error) {
	if rv.IsNil() {
		return Null(), nil
	}
	key := identityKey{typ: rv.Type(), addr: rv.Pointer()}
	if cached, ok := c.seen[key]; ok {
		return cached, nil
	}

	elem := rv.Elem()
	switch elem.Kind() {
	case reflect.Struct:
		obj := Object()
		c.seen[key] = obj
		if err := c.fillStruct(obj, elem); err != nil {
			return nil, err
		}
		return obj, nil

	case reflect.Slice, reflect.Array:
		arr := Array()
		c.seen[key] = arr
		for i := 0; i < elem.Len(); i++ {
			ev, err := c.convert(elem.Index(i))
			if err != nil {
				return nil, err
			}
			arr.Elems = append(arr.Elems, ev)
		}
		return arr, nil

	default:
		// 指向原始值或 map 的指针没有独立身份语义，直接解引用。
		return c.convert(elem)
	}
}
