package json

import (
	"io"

	"github.com/bytedance/sonic"
)

// 本包是 bytedance/sonic 的薄封装，统一项目内的 JSON 编解码入口。
//
// 使用 ConfigDefault 而非 ConfigStd：快照输出面向人类阅读与逐字节比对，
// 不做 HTML 转义，字符串字面量保持原文。
var json = sonic.ConfigDefault

// Marshal 将任意对象编码为 JSON 字节序列。
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalToString 将任意对象编码为 JSON 字符串。
func MarshalToString(v any) (string, error) {
	return json.MarshalToString(v)
}

// Unmarshal 将 JSON 字节序列解码到目标对象。
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// UnmarshalFromString 将 JSON 字符串解码到目标对象。
func UnmarshalFromString(data string, v any) error {
	return json.UnmarshalFromString(data, v)
}

// Valid 判断给定字节序列是否为合法 JSON。
func Valid(data []byte) bool {
	return json.Valid(data)
}

// NewDecoder 创建一个从 r 读取的流式解码器。
func NewDecoder(r io.Reader) sonic.Decoder {
	return json.NewDecoder(r)
}

// NewEncoder 创建一个写入 w 的流式编码器。
func NewEncoder(w io.Writer) sonic.Encoder {
	return json.NewEncoder(w)
}
