package dump

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/snap-garden-go/pkg/util/conc"
	"github.com/lk2023060901/snap-garden-go/pkg/util/merr"
)

type DumpSuite struct {
	suite.Suite

	inputDir  string
	outputDir string
}

func (s *DumpSuite) SetupTest() {
	s.inputDir = s.T().TempDir()
	s.outputDir = s.T().TempDir()
}

func (s *DumpSuite) writeFixture(name, content string) {
	s.NoError(os.WriteFile(filepath.Join(s.inputDir, name), []byte(content), 0o644))
}

func (s *DumpSuite) readOutput(name string) string {
	raw, err := os.ReadFile(filepath.Join(s.outputDir, name))
	s.NoError(err)
	return string(raw)
}

func (s *DumpSuite) run(workers int) *Report {
	d := NewDumper(Options{
		InputDir:  s.inputDir,
		OutputDir: s.outputDir,
		Workers:   workers,
	})
	report, err := d.Run(context.Background())
	s.NoError(err)
	return report
}

func (s *DumpSuite) TestDump() {
	s.writeFixture("a.json", `{"name":"snap","tags":["x","y"]}`)
	s.writeFixture("b.json", `[1,2.5,null,true]`)

	report := s.run(2)
	s.Equal(2, report.Processed)
	s.Equal(0, report.Failed)

	// JSON object 经由 Go map 落到 Map 记法，键排序后输出。
	s.Equal(`{"kind":"Map","value":[["name","snap"],["tags",["x","y"]]]}`, s.readOutput("a.snap"))
	s.Equal(`[1,2.5,null,true]`, s.readOutput("b.snap"))
	s.Equal(`{"a.json":"a.snap","b.json":"b.snap"}`, s.readOutput("manifest.json"))
}

func (s *DumpSuite) TestDeterministicAcrossRuns() {
	s.writeFixture("m.json", `{"z":1,"a":{"nested":[1,2]},"k":null}`)

	s.run(1)
	first := s.readOutput("m.snap")

	other := s.T().TempDir()
	d := NewDumper(Options{InputDir: s.inputDir, OutputDir: other, Workers: 4})
	_, err := d.Run(context.Background())
	s.NoError(err)
	second, err2 := os.ReadFile(filepath.Join(other, "m.snap"))
	s.NoError(err2)
	s.Equal(first, string(second))
}

func (s *DumpSuite) TestInvalidInputDoesNotAbortBatch() {
	s.writeFixture("good.json", `123`)
	s.writeFixture("bad.json", `{invalid`)

	report := s.run(2)
	s.Equal(1, report.Processed)
	s.Equal(1, report.Failed)

	s.Equal(`123`, s.readOutput("good.snap"))
	// 清单只包含成功的文件。
	s.Equal(`{"good.json":"good.snap"}`, s.readOutput("manifest.json"))

	for _, res := range report.Results {
		if res.Input == "bad.json" {
			s.ErrorIs(res.Err, merr.ErrDumpInputInvalid)
		}
	}
}

func (s *DumpSuite) TestSharedPoolDefault() {
	s.writeFixture("a.json", `1`)

	// Workers 未设置时使用共享协程池，任务结束后池仍然可用，
	// 后续的 Dumper 可以继续复用。
	for i := 0; i < 3; i++ {
		d := NewDumper(Options{InputDir: s.inputDir, OutputDir: s.outputDir})
		s.False(d.ownPool)
		report, err := d.Run(context.Background())
		s.NoError(err)
		s.Equal(1, report.Processed)
	}
	s.Positive(conc.EncodePool().Cap())
}

func (s *DumpSuite) TestNoInput() {
	d := NewDumper(Options{InputDir: s.inputDir, OutputDir: s.outputDir})
	_, err := d.Run(context.Background())
	s.ErrorIs(err, merr.ErrDumpNoInput)
}

func (s *DumpSuite) TestNonJSONFilesIgnored() {
	s.writeFixture("data.json", `"ok"`)
	s.writeFixture("readme.txt", `not a fixture`)

	report := s.run(1)
	s.Equal(1, report.Processed)
	s.Equal(`"ok"`, s.readOutput("data.snap"))
}

func TestDump(t *testing.T) {
	suite.Run(t, new(DumpSuite))
}
