package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/procsim/procsim/sim"
	"github.com/procsim/procsim/sim/scenario"
	"github.com/procsim/procsim/sim/stats"
)

// trialSeed derives the seed of trial i of an experiment.
func trialSeed(seed int64, i int) int64 {
	return int64(sim.NewSimulationKey(seed).ForTrial(i))
}

// Report is the outcome of an experiment.
type Report struct {
	Scenario    scenario.Config   `json:"scenario"`
	Seed        int64             `json:"seed"`
	OfferedLoad float64           `json:"offered_load"`
	Trials      []scenario.Result `json:"trials"`
	// Across-trial summaries of the per-trial values.
	Utilization stats.Summary `json:"utilization"`
	MeanWait    stats.Summary `json:"mean_wait"`
	MeanSojourn stats.Summary `json:"mean_sojourn"`
	Preemptions stats.Summary `json:"preemptions"`
	WallTime    string        `json:"wall_time"`
}

func newReport(file scenario.File, results []scenario.Result, elapsed time.Duration) *Report {
	util, wait, sojourn, preempted := stats.NewDataset(), stats.NewDataset(), stats.NewDataset(), stats.NewDataset()
	for _, r := range results {
		util.Add(r.Utilization)
		wait.Add(r.Wait.Mean)
		sojourn.Add(r.Sojourn.Mean)
		stats.AddAll(preempted, r.Preemptions)
	}
	return &Report{
		Scenario:    file.Config,
		Seed:        file.Seed,
		OfferedLoad: file.OfferedLoad(),
		Trials:      results,
		Utilization: util.Summary(),
		MeanWait:    wait.Summary(),
		MeanSojourn: sojourn.Summary(),
		Preemptions: preempted.Summary(),
		WallTime:    elapsed.Round(time.Millisecond).String(),
	}
}

func (r *Report) write(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := sonnet.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return nil
	case "text":
		return r.writeText(w)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func (r *Report) writeText(w io.Writer) error {
	fmt.Fprintln(w, "=== Simulation Results ===")
	fmt.Fprintf(w, "servers: %d  horizon: %g  offered load: %.3f  preempt: %t  seed: %d\n",
		r.Scenario.Servers, r.Scenario.Horizon, r.OfferedLoad, r.Scenario.Preempt, r.Seed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "trial\tarrived\tserved\tpreempted\twait\tsojourn\tutilization\tevents\t")
	for _, t := range r.Trials {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.4f\t%.4f\t%.4f\t%d\t\n",
			t.Trial, t.Arrived, t.Served, t.Preemptions, t.Wait.Mean, t.Sojourn.Mean, t.Utilization, t.Events)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Trials) > 1 {
		fmt.Fprintln(w, "--- across trials (mean ± sd) ---")
		for _, row := range []struct {
			name string
			s    stats.Summary
		}{
			{"utilization", r.Utilization},
			{"mean wait", r.MeanWait},
			{"mean sojourn", r.MeanSojourn},
			{"preemptions", r.Preemptions},
		} {
			fmt.Fprintf(w, "%-13s %.4f ± %.4f\n", row.name, row.s.Mean, row.s.StdDev)
		}
	}
	_, err := fmt.Fprintf(w, "wall time: %s\n", r.WallTime)
	return err
}
