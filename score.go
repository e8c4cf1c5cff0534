// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// vqcmp tool's score subcommand implementation.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/evolution-gaming/vqcmp/internal/analysis"
	"github.com/evolution-gaming/vqcmp/internal/decode"
	"github.com/evolution-gaming/vqcmp/internal/frame"
	"github.com/evolution-gaming/vqcmp/internal/logging"
	"github.com/evolution-gaming/vqcmp/internal/metric"
	"github.com/evolution-gaming/vqcmp/internal/pipeline"
	"github.com/evolution-gaming/vqcmp/internal/progress"
	"github.com/evolution-gaming/vqcmp/internal/report"
	"github.com/evolution-gaming/vqcmp/internal/stats"
	"github.com/evolution-gaming/vqcmp/internal/tools"
	"github.com/evolution-gaming/vqcmp/internal/video"
	"github.com/schollz/progressbar/v3"
)

// Metric name reported in summaries, reports and graphs.
const metricName = "PSNR"

// How often the progress bar re-renders from the tracker snapshot.
const progressRefresh = 100 * time.Millisecond

// Make sure ScoreApp implements Commander interface.
var _ Commander = (*ScoreApp)(nil)

// ScoreApp is score subcommand context that implements Commander interface.
type ScoreApp struct {
	// Configuration object
	cfg *Config
	// FlagSet instance
	fs *flag.FlagSet
	// Reference (pristine) video file
	flRef string
	// Distorted (compressed) video file
	flDist string
	// Concurrent evaluation workers
	flWorkers int
	// Frame skipping factor
	flStride int
	// Comma separated percentile ranks
	flPercentiles string
	// Score graph output file
	flGraph string
	// Per-frame CSV output file
	flCSV string
	// JSON report output file
	flReport string
	// Print every frame score
	flVerbose bool
	// Global flags
	gf globalFlags
}

// CreateScoreCommand will create Commander instance from ScoreApp.
func CreateScoreCommand() Commander {
	longHelp := `Subcommand "score" computes a per-frame quality score between a reference and
a distorted video, then reduces the score series into summary statistics.
Frames are paired in decode order, evaluation runs on a bounded worker pool
and results are reassembled into strict frame order.

Resolutions of both streams must match. Frame counts must match, a length
mismatch aborts the run.

Examples:

  vqcmp score -ref original.mp4 -dist encoded.mp4
  vqcmp score -ref original.mp4 -dist encoded.mp4 -workers 4 -graph scores.png
  vqcmp score -ref original.mp4 -dist encoded.mp4 -stride 5 -percentiles 1,50,99`

	app := &ScoreApp{
		fs: flag.NewFlagSet("score", flag.ContinueOnError),
		gf: globalFlags{},
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flRef, "ref", "", "Reference video file (mandatory)")
	app.fs.StringVar(&app.flDist, "dist", "", "Distorted video file (mandatory)")
	app.fs.IntVar(&app.flWorkers, "workers", 0, "Concurrent evaluation workers, memory use grows linearly (default from configuration, 1)")
	app.fs.IntVar(&app.flStride, "stride", 0, "Evaluate every Nth frame (default from configuration, 1)")
	app.fs.StringVar(&app.flPercentiles, "percentiles", "", "Comma separated percentile ranks for summary (default from configuration, 5,50,95)")
	app.fs.StringVar(&app.flGraph, "graph", "", "Save per-frame score graph to given PNG file (optional)")
	app.fs.StringVar(&app.flCSV, "csv", "", "Save per-frame scores to given CSV file (optional)")
	app.fs.StringVar(&app.flReport, "report", "", "JSON report file (default from configuration)")
	app.fs.BoolVar(&app.flVerbose, "verbose", false, "Print score for every frame")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

func (a *ScoreApp) Name() string {
	return a.fs.Name()
}

func (a *ScoreApp) Help() {
	a.fs.Usage()
}

// init will do App state initialization.
func (a *ScoreApp) init(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("%s usage error", a.Name()),
		}
	}

	if a.gf.Debug {
		logging.EnableDebugLogger()
	}

	if a.flRef == "" || a.flDist == "" {
		a.Help()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory options -ref and -dist are missing",
		}
	}

	for _, f := range []string{a.flRef, a.flDist} {
		if !fileExists(f) {
			return &AppError{
				exitCode: 2,
				msg:      fmt.Sprintf("video file does not exist: %s", f),
			}
		}
	}

	// Load application configuration and apply flag overrides on top.
	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	if a.flWorkers != 0 {
		c.Workers = NewConfigVal(a.flWorkers)
	}
	if a.flStride != 0 {
		c.Stride = NewConfigVal(a.flStride)
	}
	if a.flPercentiles != "" {
		ranks, err := parsePercentiles(a.flPercentiles)
		if err != nil {
			return &AppError{exitCode: 2, msg: err.Error()}
		}
		c.Percentiles = NewConfigVal(ranks)
	}
	if a.flReport != "" {
		c.ReportFileName = NewConfigVal(a.flReport)
	}
	a.cfg = &c

	if err := a.cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	return nil
}

// Run is main entry point into ScoreApp execution.
func (a *ScoreApp) Run(args []string) error {
	if err := a.init(args); err != nil {
		return err
	}

	refMeta, err := tools.FfprobeExtractMetadata(a.flRef)
	if err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("reference metadata: %s", err)}
	}
	distMeta, err := tools.FfprobeExtractMetadata(a.flDist)
	if err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("distorted metadata: %s", err)}
	}

	stride := a.cfg.Stride.Value()
	workers := a.cfg.Workers.Value()

	// Expected pair count for progress reporting, 0 when ffprobe could not
	// count frames. The pipeline itself never trusts this number, length
	// mismatch is detected while pairing.
	totalPairs := expectedPairs(refMeta, stride)
	logging.Infof("Scoring %s vs %s: %dx%d, %d expected pairs, stride %d, %d workers",
		a.flRef, a.flDist, refMeta.Width, refMeta.Height, totalPairs, stride, workers)

	srcCfg := &decode.FfmpegSourceConfig{
		FfmpegPath:     a.cfg.FfmpegPath.Value(),
		DecodeTemplate: a.cfg.FfmpegDecodeTemplate.Value(),
	}
	refSrc, err := decode.NewFfmpegSource(srcCfg, a.flRef, refMeta.Width, refMeta.Height)
	if err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("reference decoder: %s", err)}
	}
	defer refSrc.Close()
	distSrc, err := decode.NewFfmpegSource(srcCfg, a.flDist, distMeta.Width, distMeta.Height)
	if err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("distorted decoder: %s", err)}
	}
	defer distSrc.Close()

	series, tracker, err := a.runPipeline(refSrc, distSrc, totalPairs)
	if err != nil {
		// No partial report or graph on fatal pipeline error.
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	final := tracker.Snapshot()
	logging.Infof("Scored %d frame pairs in %s", final.Completed, final.Elapsed.Round(time.Millisecond))

	values := make([]float64, len(series))
	for i, s := range series {
		values[i] = s.Value
	}

	summary, err := stats.Aggregate(values, a.cfg.Percentiles.Value())
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	rep := &report.Report{
		Metric:    metricName,
		Reference: a.flRef,
		Distorted: a.flDist,
		Stride:    stride,
		Workers:   workers,
		Summary:   summary,
		Series:    series,
	}

	return a.writeOutputs(rep, values)
}

// runPipeline executes the scoring pipeline with progress display attached.
func (a *ScoreApp) runPipeline(refSrc, distSrc frame.Producer, totalPairs uint64) ([]pipeline.Sample, *progress.Tracker, error) {
	tracker := progress.NewTracker(totalPairs)
	bar := newProgressBar(totalPairs)

	// Coalesced display updates, decoupled from completion events. The
	// tracker is the single owner of progress state, the bar only renders
	// snapshots.
	stopRefresh := make(chan struct{})
	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		tick := time.NewTicker(progressRefresh)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				renderProgress(bar, tracker.Snapshot())
			case <-stopRefresh:
				return
			}
		}
	}()

	opts := pipeline.Options{
		Source:     frame.NewPairSource(refSrc, distSrc, a.cfg.Stride.Value()),
		Score:      metric.PSNR,
		Workers:    a.cfg.Workers.Value(),
		OnComplete: tracker.Observe,
	}
	if a.flVerbose {
		opts.OnSample = func(s pipeline.Sample) {
			fmt.Printf("Frame %d: %.8f\n", s.Index, s.Value)
		}
	}

	series, err := pipeline.Run(context.Background(), opts)

	close(stopRefresh)
	<-refreshDone
	renderProgress(bar, tracker.Snapshot())
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, nil, err
	}
	return series, tracker, nil
}

// writeOutputs emits the summary and all requested report artifacts.
func (a *ScoreApp) writeOutputs(rep *report.Report, values []float64) error {
	if err := rep.WriteSummary(os.Stdout); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	reportFile := a.cfg.ReportFileName.Value()
	fd, err := os.Create(reportFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("creating report file: %s", err)}
	}
	err = rep.WriteJSON(fd)
	fd.Close()
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	logging.Infof("Report done: %s", reportFile)

	if a.flCSV != "" {
		fd, err := os.Create(a.flCSV)
		if err != nil {
			return &AppError{exitCode: 1, msg: fmt.Sprintf("creating CSV file: %s", err)}
		}
		err = rep.WriteCSV(fd)
		fd.Close()
		if err != nil {
			return &AppError{exitCode: 1, msg: err.Error()}
		}
		logging.Infof("Per-frame CSV done: %s", a.flCSV)
	}

	if a.flGraph != "" {
		if err := analysis.MultiPlotScores(values, metricName, a.flDist, a.flGraph); err != nil {
			return &AppError{exitCode: 1, msg: fmt.Sprintf("failed creating score graph: %s", err)}
		}
		logging.Infof("Score graph done: %s", a.flGraph)
	}

	return nil
}

// expectedPairs derives the expected pair count ⌈frames/stride⌉ from probed
// metadata, 0 when the frame count is unknown.
func expectedPairs(meta video.Metadata, stride int) uint64 {
	if meta.FrameCount <= 0 || stride < 1 {
		return 0
	}
	return uint64((meta.FrameCount + stride - 1) / stride)
}

// newProgressBar creates the stderr progress bar, a spinner when the total
// frame count is unknown.
func newProgressBar(total uint64) *progressbar.ProgressBar {
	max := int64(total)
	if max == 0 {
		max = -1
	}
	return progressbar.NewOptions64(max,
		progressbar.OptionSetDescription("scoring"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// renderProgress pushes one tracker snapshot to the bar.
func renderProgress(bar *progressbar.ProgressBar, s progress.State) {
	_ = bar.Set64(int64(s.Completed))
	desc := fmt.Sprintf("scoring (%.1f fps", s.Rate)
	if s.ETA > 0 {
		desc += fmt.Sprintf(", eta %s", s.ETA.Round(time.Second))
	}
	desc += ")"
	bar.Describe(desc)
}
