package dump

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/snap-garden-go/internal/json"
	"github.com/lk2023060901/snap-garden-go/pkg/encode"
	"github.com/lk2023060901/snap-garden-go/pkg/log"
	"github.com/lk2023060901/snap-garden-go/pkg/metrics"
	"github.com/lk2023060901/snap-garden-go/pkg/util/conc"
	"github.com/lk2023060901/snap-garden-go/pkg/util/merr"
	"github.com/lk2023060901/snap-garden-go/pkg/util/retry"
	"github.com/lk2023060901/snap-garden-go/pkg/util/typeutil"
)

const (
	inputSuffix  = ".json"
	outputSuffix = ".snap"
	manifestName = "manifest.json"
)

// Options 为一次批量快照任务的配置。
type Options struct {
	// InputDir 为输入目录，其中每个 .json 文件是一个待编码的 fixture。
	InputDir string
	// OutputDir 为输出目录，编码结果以 .snap 后缀写入。
	OutputDir string
	// Workers 为并发编码的 worker 数。
	// 非正数时使用进程级共享的编码协程池，由所有 Dumper 复用。
	Workers int
	// InvokeFunctions 表示是否在编码时调用零参函数。
	InvokeFunctions bool
	// IOAttempts 为读写文件的最大重试次数，0 取默认值 3。
	IOAttempts uint
}

func (opts *Options) complete() {
	if opts.IOAttempts == 0 {
		opts.IOAttempts = 3
	}
}

// FileResult 记录单个 fixture 的处理结果。
type FileResult struct {
	Input  string
	Output string
	Err    error
}

// Report 为一次批量快照任务的汇总结果。
type Report struct {
	Processed int
	Failed    int
	Results   []FileResult
}

// Dumper 批量读取 JSON fixture，经由值模型编码为确定性快照文本。
//
// 每个文件由独立的任务处理，任务内部使用各自的 Encoder，
// 文件之间互不共享引用登记表。输出清单按输入文件名排序，
// 同一组输入两次运行产生逐字节一致的清单。
type Dumper struct {
	opts Options

	pool *conc.Pool[any]
	// ownPool 为 true 时协程池归本 Dumper 所有，任务结束后回收；
	// 否则使用共享的 EncodePool，不能在这里 Release。
	ownPool bool

	processed *atomic.Int64
	failed    *atomic.Int64
}

// NewDumper 创建 Dumper。
func NewDumper(opts Options) *Dumper {
	opts.complete()
	d := &Dumper{
		opts:      opts,
		processed: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
	}
	if opts.Workers > 0 {
		d.pool = conc.NewDefaultPool[any](opts.Workers)
		d.ownPool = true
	} else {
		d.pool = conc.EncodePool()
	}
	return d
}

// Run 执行批量快照，返回汇总结果。
// 输入目录中没有任何 .json 文件时返回 ErrDumpNoInput。
// 单个文件的失败不会中断其余文件，失败信息记录在 Report 中。
func (d *Dumper) Run(ctx context.Context) (*Report, error) {
	if d.ownPool {
		defer d.pool.Release()
	}

	inputs, err := d.listInputs()
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info("dump started",
		zap.String("inputDir", d.opts.InputDir),
		zap.String("outputDir", d.opts.OutputDir),
		zap.Int("files", len(inputs)),
		zap.Int("workers", d.pool.Cap()),
		zap.Bool("sharedPool", !d.ownPool))

	if err := os.MkdirAll(d.opts.OutputDir, 0o755); err != nil {
		return nil, merr.WrapErrDumpIoFailed(d.opts.OutputDir, err)
	}

	futures := lo.Map(inputs, func(name string, _ int) *conc.Future[any] {
		return d.pool.Submit(func() (any, error) {
			return d.dumpOne(ctx, name), nil
		})
	})

	report := &Report{}
	manifest := typeutil.NewOrderedMap[string, string]()
	failedCodes := typeutil.NewSet[int32]()
	for _, future := range futures {
		raw, _ := future.Await()
		res := raw.(FileResult)
		report.Results = append(report.Results, res)
		if res.Err != nil {
			report.Failed++
			failedCodes.Insert(merr.Code(res.Err))
			continue
		}
		report.Processed++
		manifest.Set(res.Input, filepath.Base(res.Output))
	}

	if err := d.writeManifest(manifest); err != nil {
		return nil, err
	}

	failures := lo.Filter(report.Results, func(r FileResult, _ int) bool {
		return r.Err != nil
	})
	log.Ctx(ctx).Info("dump finished",
		zap.Int("processed", report.Processed),
		zap.Int("failed", len(failures)),
		zap.Int32s("failedCodes", failedCodes.Collect()),
		zap.Int64("totalProcessed", d.processed.Load()))
	for _, failure := range failures {
		log.Ctx(ctx).Warn("dump file failed",
			zap.String("input", failure.Input),
			zap.Error(failure.Err))
	}

	return report, nil
}

// listInputs 列出输入目录中的全部 fixture，按文件名排序。
func (d *Dumper) listInputs() ([]string, error) {
	entries, err := os.ReadDir(d.opts.InputDir)
	if err != nil {
		return nil, merr.WrapErrDumpIoFailed(d.opts.InputDir, err)
	}

	inputs := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if e.IsDir() || !strings.HasSuffix(e.Name(), inputSuffix) {
			return "", false
		}
		return e.Name(), true
	})
	if len(inputs) == 0 {
		return nil, merr.WrapErrDumpNoInput(d.opts.InputDir)
	}
	sort.Strings(inputs)
	return inputs, nil
}

// dumpOne 处理单个 fixture 文件。
func (d *Dumper) dumpOne(ctx context.Context, name string) FileResult {
	start := time.Now()
	inputPath := filepath.Join(d.opts.InputDir, name)
	outputPath := filepath.Join(d.opts.OutputDir, strings.TrimSuffix(name, inputSuffix)+outputSuffix)
	res := FileResult{Input: name, Output: outputPath}

	fail := func(err error) FileResult {
		d.failed.Inc()
		metrics.DumpFilesTotal.WithLabelValues(metrics.StatusFail).Inc()
		res.Err = err
		return res
	}

	var raw []byte
	err := retry.Do(ctx, func() error {
		var readErr error
		raw, readErr = os.ReadFile(inputPath)
		if readErr != nil {
			return merr.WrapErrDumpIoFailed(inputPath, readErr)
		}
		return nil
	}, retry.Attempts(d.opts.IOAttempts))
	if err != nil {
		return fail(err)
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fail(merr.WrapErrDumpInputInvalid(inputPath, err))
	}

	val, err := encode.FromAny(parsed)
	if err != nil {
		return fail(merr.WrapErrDumpInputInvalid(inputPath, err))
	}

	var opts []encode.Option
	if d.opts.InvokeFunctions {
		opts = append(opts, encode.WithFunctionInvocation())
	}
	out, err := encode.Stringify(val, opts...)
	if err != nil {
		return fail(merr.WrapErrDumpInputInvalid(inputPath, err))
	}

	err = retry.Do(ctx, func() error {
		if writeErr := os.WriteFile(outputPath, []byte(out), 0o644); writeErr != nil {
			return merr.WrapErrDumpIoFailed(outputPath, writeErr)
		}
		return nil
	}, retry.Attempts(d.opts.IOAttempts))
	if err != nil {
		return fail(err)
	}

	d.processed.Inc()
	metrics.DumpFilesTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	metrics.DumpBytesWritten.Add(float64(len(out)))
	metrics.DumpFileDuration.Observe(float64(time.Since(start).Milliseconds()))
	return res
}

// writeManifest 写出确定性的清单文件，键按输入文件名的插入顺序排列。
func (d *Dumper) writeManifest(manifest *typeutil.OrderedMap[string, string]) error {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	manifest.Range(func(input, output string) bool {
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&b, "%q:%q", input, output)
		return true
	})
	b.WriteByte('}')

	path := filepath.Join(d.opts.OutputDir, manifestName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return merr.WrapErrDumpIoFailed(path, err)
	}
	return nil
}
