package bench

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ajitpratap0/chunkpool/pkg/config"
	"github.com/ajitpratap0/chunkpool/pkg/json"
	"github.com/ajitpratap0/chunkpool/pkg/pool"
)

// Check is the tally of one named invariant over a run.
type Check struct {
	Name     string `json:"name"`
	Runs     int    `json:"runs"`
	Failures int    `json:"failures"`
	Detail   string `json:"detail,omitempty"`
}

// Passed reports whether every evaluation held.
func (c Check) Passed() bool {
	return c.Failures == 0
}

func sortedChecks(m map[string]*Check) []Check {
	out := make([]Check, 0, len(m))
	for _, c := range m {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RoundReport summarizes one allocate/lookup/release/verify round.
type RoundReport struct {
	Round     int                      `json:"round"`
	Allocated int                      `json:"allocated"`
	Released  int                      `json:"released"`
	Live      int                      `json:"live"`
	Capacity  int                      `json:"capacity"`
	Chunks    int                      `json:"chunks"`
	Durations map[string]time.Duration `json:"durations_ns"`
}

// WorkerReport covers one pool.
type WorkerReport struct {
	Pool          string        `json:"pool"`
	Rounds        []RoundReport `json:"rounds"`
	PeakCapacity  int           `json:"peak_capacity"`
	ClearDuration time.Duration `json:"clear_duration_ns"`
	// Stats is taken just before the final Clear.
	Stats  pool.Stats `json:"stats"`
	Final  pool.Stats `json:"final"`
	Resets uint64     `json:"resets"`
	Checks []Check    `json:"checks"`
}

// Report is the outcome of a bench run.
type Report struct {
	RunID     string             `json:"run_id"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration_ns"`
	Pool      config.PoolConfig  `json:"pool"`
	Bench     config.BenchConfig `json:"bench"`
	Workers   []*WorkerReport    `json:"workers"`
	Before    *ResourceUsage     `json:"resources_before,omitempty"`
	After     *ResourceUsage     `json:"resources_after,omitempty"`
}

// Failed returns every check that failed at least once, across workers.
func (r *Report) Failed() []Check {
	var out []Check
	for _, w := range r.Workers {
		if w == nil {
			continue
		}
		for _, c := range w.Checks {
			if !c.Passed() {
				out = append(out, c)
			}
		}
	}
	return out
}

// Operations counts successful allocations and releases across workers.
func (r *Report) Operations() uint64 {
	var n uint64
	for _, w := range r.Workers {
		if w != nil {
			n += w.Final.Allocations + w.Final.Releases
		}
	}
	return n
}

// JSON encodes the report with indentation.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// WriteJSON writes the indented report followed by a newline.
func (r *Report) WriteJSON(out io.Writer) error {
	return json.MarshalToWriter(out, r, "  ")
}

// RoundRecord is one line of WriteJSONLines output.
type RoundRecord struct {
	RunID string `json:"run_id"`
	Pool  string `json:"pool"`
	RoundReport
}

// WriteJSONLines writes one JSON object per round, worker by worker.
func (r *Report) WriteJSONLines(out io.Writer) error {
	enc := json.NewLinesEncoder(out)
	for _, w := range r.Workers {
		if w == nil {
			continue
		}
		for _, rr := range w.Rounds {
			if err := enc.Encode(RoundRecord{RunID: r.RunID, Pool: w.Pool, RoundReport: rr}); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteText writes a human-readable summary.
func (r *Report) WriteText(out io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d worker(s), chunk size %d, %v\n",
		r.RunID, len(r.Workers), r.Pool.ChunkSize, r.Duration.Round(time.Microsecond))
	if ops := r.Operations(); r.Duration > 0 {
		fmt.Fprintf(&b, "operations: %d (%.0f ops/s)\n", ops, float64(ops)/r.Duration.Seconds())
	}
	if r.Before != nil && r.After != nil {
		fmt.Fprintf(&b, "rss: %s -> %s, heap: %s -> %s\n",
			formatBytes(r.Before.MemoryRSS), formatBytes(r.After.MemoryRSS),
			formatBytes(r.Before.HeapAlloc), formatBytes(r.After.HeapAlloc))
	}
	if _, err := io.WriteString(out, b.String()); err != nil {
		return err
	}

	for _, w := range r.Workers {
		if w == nil {
			continue
		}
		if _, err := fmt.Fprintf(out, "\npool %s: peak capacity %d, %d grows, %d failed releases, clear %v\n",
			w.Pool, w.PeakCapacity, w.Stats.Grows, w.Stats.FailedReleases, w.ClearDuration.Round(time.Microsecond)); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "round\tallocated\treleased\tlive\tcapacity\tchunks\tallocate\trelease\t")
		for _, rr := range w.Rounds {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%v\t%v\t\n",
				rr.Round, rr.Allocated, rr.Released, rr.Live, rr.Capacity, rr.Chunks,
				rr.Durations[PhaseAllocate].Round(time.Microsecond),
				rr.Durations[PhaseRelease].Round(time.Microsecond))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	failed := r.Failed()
	if len(failed) == 0 {
		_, err := fmt.Fprintln(out, "\nall invariant checks passed")
		return err
	}
	for _, c := range failed {
		if _, err := fmt.Fprintf(out, "\nFAILED %s (%d/%d): %s", c.Name, c.Failures, c.Runs, c.Detail); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(out)
	return err
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
