// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package typeutil

// OrderedMap 是保持插入顺序的映射。
// 适用于需要确定性遍历顺序的场景，例如快照清单的生成。
// 非并发安全。
type OrderedMap[K comparable, V any] struct {
	keys  []K
	index map[K]int
	vals  []V
}

func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		index: make(map[K]int),
	}
}

// Set 写入键值对。
// 新键追加到遍历顺序末尾，已存在的键只更新值、保持原有位置。
func (m *OrderedMap[K, V]) Set(key K, val V) {
	if i, ok := m.index[key]; ok {
		m.vals[i] = val
		return
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
}

// Get 返回指定键的值。
// 第二个返回值表示键是否存在。
func (m *OrderedMap[K, V]) Get(key K) (V, bool) {
	if i, ok := m.index[key]; ok {
		return m.vals[i], true
	}
	var zero V
	return zero, false
}

// Contain 判断键是否存在。
func (m *OrderedMap[K, V]) Contain(key K) bool {
	_, ok := m.index[key]
	return ok
}

// Len 返回键值对个数。
func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Keys 按插入顺序返回所有键的切片。
func (m *OrderedMap[K, V]) Keys() []K {
	keys := make([]K, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Range 按插入顺序遍历所有键值对。
// 当回调返回 false 时提前终止遍历。
func (m *OrderedMap[K, V]) Range(f func(key K, val V) bool) {
	for i := range m.keys {
		if !f(m.keys[i], m.vals[i]) {
			break
		}
	}
}
