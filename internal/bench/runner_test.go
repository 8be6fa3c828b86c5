package bench

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/chunkpool/pkg/config"
	"github.com/ajitpratap0/chunkpool/pkg/errors"
	"github.com/ajitpratap0/chunkpool/pkg/json"
	"github.com/ajitpratap0/chunkpool/pkg/testutil"
)

type RunnerSuite struct {
	testutil.IntegrationTestSuite
}

func TestRunnerSuite(t *testing.T) {
	testutil.IntegrationTest(t)
	suite.Run(t, new(RunnerSuite))
}

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Pool.Name = "bench"
	cfg.Pool.ChunkSize = 16
	cfg.Bench.Objects = 200
	cfg.Bench.Rounds = 3
	cfg.Bench.ReleaseRatio = 0.5
	cfg.Bench.TagEvery = 10
	return cfg
}

func (s *RunnerSuite) run(cfg *config.Config) (*Runner, *Report, error) {
	r, err := NewRunner(cfg, s.Logger())
	s.Require().NoError(err)
	rep, err := r.Run(s.Context())
	return r, rep, err
}

func (s *RunnerSuite) TestSmallWorkloadPassesAllChecks() {
	cfg := smallConfig()
	_, rep, err := s.run(cfg)
	s.Require().NoError(err)

	s.Require().Len(rep.Workers, 1)
	w := rep.Workers[0]
	s.Equal("bench", w.Pool)
	s.Len(w.Rounds, 3)
	s.Empty(rep.Failed())
	s.NotEmpty(w.Checks)

	for _, rr := range w.Rounds {
		s.Equal(200, rr.Allocated)
		s.Zero(rr.Capacity%16, "capacity grows in whole chunks")
		s.Equal(rr.Capacity/16, rr.Chunks)
	}
	s.Zero(w.PeakCapacity % 16)

	// two release self-checks per round (pointer alias, stale handle) on
	// top of the workload
	s.Equal(uint64(3*(200+2)), w.Stats.Allocations)
	s.Equal(uint64(6), w.Stats.FailedReleases)

	s.Zero(w.Final.Used)
	s.Zero(w.Final.Capacity)
	s.Equal(uint64(1), w.Final.Clears)
	s.Equal(w.Stats.Releases+uint64(w.Stats.Used), w.Resets)
	s.Positive(rep.Duration)
}

func (s *RunnerSuite) TestReleaseRatioBounds() {
	cfg := smallConfig()
	cfg.Bench.ReleaseRatio = 0
	_, rep, err := s.run(cfg)
	s.Require().NoError(err)
	for i, rr := range rep.Workers[0].Rounds {
		s.Zero(rr.Released)
		s.Equal(200*(i+1), rr.Live)
	}

	cfg = smallConfig()
	cfg.Bench.ReleaseRatio = 1
	_, rep, err = s.run(cfg)
	s.Require().NoError(err)
	for _, rr := range rep.Workers[0].Rounds {
		s.Equal(200, rr.Released)
		s.Zero(rr.Live)
		s.Equal(208, rr.Capacity, "freed slots are reused, so capacity stays at ceil(201/16) chunks")
	}
}

func (s *RunnerSuite) TestSameSeedSameReleases() {
	_, a, err := s.run(smallConfig())
	s.Require().NoError(err)
	_, b, err := s.run(smallConfig())
	s.Require().NoError(err)

	for i := range a.Workers[0].Rounds {
		s.Equal(a.Workers[0].Rounds[i].Released, b.Workers[0].Rounds[i].Released)
		s.Equal(a.Workers[0].Rounds[i].Live, b.Workers[0].Rounds[i].Live)
	}
}

func (s *RunnerSuite) TestWorkersOwnSeparatePools() {
	cfg := smallConfig()
	cfg.Bench.Workers = 3
	r, rep, err := s.run(cfg)
	s.Require().NoError(err)

	s.Require().Len(rep.Workers, 3)
	names := map[string]bool{}
	for _, w := range rep.Workers {
		names[w.Pool] = true
	}
	s.Equal(map[string]bool{"bench-0": true, "bench-1": true, "bench-2": true}, names)

	reg := prometheus.NewRegistry()
	s.Require().NoError(r.Register(reg))
	mfs, err := reg.Gather()
	s.Require().NoError(err)

	series := map[string]int{}
	for _, mf := range mfs {
		series[mf.GetName()] = len(mf.GetMetric())
	}
	s.Equal(3, series["chunkpool_allocations_total"])
	s.Equal(3, series["chunkpool_used_slots"])
	s.Positive(series["chunkpool_phase_duration_seconds"])
}

func (s *RunnerSuite) TestMaxChunksOutOfMemory() {
	cfg := smallConfig()
	cfg.Pool.ChunkSize = 8
	cfg.Pool.MaxChunks = 2
	_, rep, err := s.run(cfg)
	s.Require().Error(err)
	s.True(errors.IsOutOfMemory(err))

	s.Require().NotNil(rep.Workers[0])
	s.Require().Len(rep.Workers[0].Rounds, 1)
	s.Equal(16, rep.Workers[0].Rounds[0].Allocated)
}

func (s *RunnerSuite) TestRunFromConfigFile() {
	path := s.CreateTempFile("bench.yaml", []byte(`
pool:
  name: lights
  chunk_size: 8
  initial_chunks: 2
bench:
  objects: 20
  rounds: 2
  release_ratio: 0.25
  tag_every: 4
`))
	cfg, err := config.LoadFile(path)
	s.Require().NoError(err)

	_, rep, err := s.run(cfg)
	s.Require().NoError(err)
	s.Empty(rep.Failed())

	w := rep.Workers[0]
	s.Equal("lights", w.Pool)
	s.Len(w.Rounds, 2)
	s.GreaterOrEqual(w.PeakCapacity, 16)
	s.Zero(w.PeakCapacity % 8)
}

func (s *RunnerSuite) TestCancelledContext() {
	r, err := NewRunner(smallConfig(), s.Logger())
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.Context())
	cancel()
	_, err = r.Run(ctx)
	s.ErrorIs(err, context.Canceled)
}

func (s *RunnerSuite) TestReportOutput() {
	r, rep, err := s.run(smallConfig())
	s.Require().NoError(err)
	s.Equal(r.RunID(), rep.RunID)

	data, err := rep.JSON()
	s.Require().NoError(err)
	var decoded map[string]interface{}
	s.Require().NoError(json.Unmarshal(data, &decoded))
	s.Equal(rep.RunID, decoded["run_id"])
	s.Len(decoded["workers"], 1)

	var buf bytes.Buffer
	s.Require().NoError(rep.WriteJSON(&buf))
	s.JSONEq(string(data), buf.String())

	buf.Reset()
	s.Require().NoError(rep.WriteJSONLines(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	s.Require().Len(lines, 3)
	var rec RoundRecord
	s.Require().NoError(json.Unmarshal([]byte(lines[2]), &rec))
	s.Equal("bench", rec.Pool)
	s.Equal(2, rec.Round)
	s.Equal(200, rec.Allocated)

	buf.Reset()
	s.Require().NoError(rep.WriteText(&buf))
	s.Contains(buf.String(), "pool bench")
	s.Contains(buf.String(), "all invariant checks passed")
}

func TestNewRunnerRejectsBadConfig(t *testing.T) {
	_, err := NewRunner(nil, nil)
	assert.True(t, errors.IsInvalidParam(err))

	cfg := smallConfig()
	cfg.Pool.ChunkSize = 0
	_, err = NewRunner(cfg, nil)
	assert.True(t, errors.IsInvalidParam(err))

	cfg = smallConfig()
	cfg.Bench.Objects = 0
	_, err = NewRunner(cfg, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRunLogsCarryRunAndPool(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := smallConfig()
	cfg.Bench.Rounds = 1
	r, err := NewRunner(cfg, zap.New(core))
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	started := logs.FilterMessage("bench started").AllUntimed()
	require.Len(t, started, 1)
	assert.Equal(t, r.RunID(), started[0].ContextMap()["run_id"])

	rounds := logs.FilterMessage("round complete").AllUntimed()
	require.Len(t, rounds, 1)
	fields := rounds[0].ContextMap()
	assert.Equal(t, r.RunID(), fields["run_id"])
	assert.Equal(t, "bench", fields["pool"])
	assert.EqualValues(t, 0, fields["worker"])
}

func TestReportFailedChecks(t *testing.T) {
	rep := &Report{Workers: []*WorkerReport{
		{Pool: "a", Checks: []Check{{Name: "lookup/exact", Runs: 4}}},
		{Pool: "b", Checks: []Check{{Name: "lookup/exact", Runs: 4, Failures: 1, Detail: "tag \"x\" resolved to 0x0"}}},
		nil,
	}}
	failed := rep.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Failures)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	assert.Contains(t, buf.String(), "FAILED lookup/exact (1/4)")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512B", formatBytes(512))
	assert.Equal(t, "1.5KiB", formatBytes(1536))
	assert.Equal(t, "2.0MiB", formatBytes(2<<20))
}

func TestKindString(t *testing.T) {
	var o Object
	o.fill(4)
	assert.Equal(t, KindTexture, o.Kind)
	assert.Equal(t, "texture", o.Kind.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
