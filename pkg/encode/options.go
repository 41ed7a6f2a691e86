package encode

// encoderOption 保存一次编码过程的可配置行为。
type encoderOption struct {
	// invokeFunctions 表示是否调用零参函数并内联其返回值。
	invokeFunctions bool
}

// Option 用于配置 Encoder 行为的选项函数。
type Option func(opt *encoderOption)

func defaultEncoderOption() *encoderOption {
	return &encoderOption{
		invokeFunctions: false,
	}
}

// WithFunctionInvocation 开启零参函数调用。
// 开启后，图中可达的每个零参函数都会被同步调用，
// 其返回值以 Function 标记记录内联到输出中。
func WithFunctionInvocation() Option {
	return func(opt *encoderOption) {
		opt.invokeFunctions = true
	}
}
