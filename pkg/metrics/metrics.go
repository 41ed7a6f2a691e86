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

package metrics

import (
	// #nosec
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// snapNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	snapNamespace = "snap"

	dumpMetricSubsystem = "dump"

	// 以下为当前使用的通用标签名。
	statusLabelName = "status"

	StatusSuccess = "success"
	StatusFail    = "fail"
)

var (
	// durationBuckets 为单文件处理耗时直方图的桶划分，单位为毫秒。
	durationBuckets = prometheus.ExponentialBuckets(1, 2, 18)

	// DumpFilesTotal 统计 dump 流水线处理的文件数，按结果区分。
	DumpFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: snapNamespace,
			Subsystem: dumpMetricSubsystem,
			Name:      "files_total",
			Help:      "dump 流水线处理的文件总数",
		}, []string{statusLabelName})

	// DumpBytesWritten 统计 dump 流水线写出的快照字节数。
	DumpBytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: snapNamespace,
			Subsystem: dumpMetricSubsystem,
			Name:      "bytes_written",
			Help:      "dump 流水线写出的快照总字节数",
		})

	// DumpFileDuration 统计单个文件从读取到写出的耗时。
	DumpFileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: snapNamespace,
			Subsystem: dumpMetricSubsystem,
			Name:      "file_duration_ms",
			Help:      "单个文件编码写出的耗时，单位毫秒",
			Buckets:   durationBuckets,
		})

	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标。
// 通常应在 init 函数中调用。
func Register(r prometheus.Registerer) {
	r.MustRegister(DumpFilesTotal)
	r.MustRegister(DumpBytesWritten)
	r.MustRegister(DumpFileDuration)
	metricRegisterer = r
}
