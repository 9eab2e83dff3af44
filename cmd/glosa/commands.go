package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cargoclaro/glosa-sub000/internal/app"
	"github.com/cargoclaro/glosa-sub000/internal/async"
	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/export"
	"github.com/cargoclaro/glosa-sub000/internal/ingest"
	"github.com/cargoclaro/glosa-sub000/internal/pipeline"
)

const outputBase = "glosa"

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func wire(ctx context.Context, f *rootFlags) (*app.App, *common.Config, error) {
	cfg, logger, err := setup(f)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, app.Options{ManifestPath: f.manifest}, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func printSummary(dir string, out *pipeline.Outcome, written []string) {
	fmt.Printf("Expediente: %s\n", dir)
	fmt.Printf("- Run: %s\n", out.RunID)
	if out.Report != nil {
		s := out.Report.Summary()
		fmt.Printf("- Validations: %d (passed %d, failed %d, could not verify %d)\n", s.Total(), s.Passed, s.Failed, s.Unverified)
	}
	for _, p := range written {
		fmt.Printf("- Output: %s\n", p)
	}
}

func reviewCmd(f *rootFlags) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "review <dir>",
		Short: "Review one expediente directory and write XLSX and JSON reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, cfg, err := wire(ctx, f)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx, cancel := context.WithTimeout(ctx, cfg.Review.Timeout)
			defer cancel()
			dir := args[0]
			out, err := a.Processor.ReviewDirectory(ctx, dir)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = dir
			}
			written, err := export.NewService(nil).WriteFiles(outDir, outputBase, out)
			if err != nil {
				return err
			}
			printSummary(dir, out, written)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to the expediente directory)")
	return cmd
}

func classifyCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <dir>",
		Short: "Classify the files of an expediente and print the result as JSON (pages are 1-based)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, _, err := wire(ctx, f)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			docs, _, _, err := a.Loader.LoadDirectory(ctx, args[0], true)
			if err != nil {
				return err
			}
			out := make([]entity.ClassificationSummary, len(docs))
			var wg sync.WaitGroup
			for i, doc := range docs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := a.Classifier.Classify(ctx, doc)
					if err != nil {
						out[i] = entity.ClassificationSummary{File: doc.Name, Error: err.Error()}
						return
					}
					out[i] = res.Summary()
				}()
			}
			wg.Wait()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

// expedienteDirs lists the non-hidden subdirectories of inbox, sorted.
func expedienteDirs(inbox string) ([]string, error) {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !ingest.IsHidden(e.Name()) {
			dirs = append(dirs, filepath.Join(inbox, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func batchCmd(f *rootFlags) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "batch <inbox>",
		Short: "Review every expediente subdirectory of inbox with a bounded worker pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, cfg, err := wire(ctx, f)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			dirs, err := expedienteDirs(args[0])
			if err != nil {
				return err
			}
			exp := export.NewService(nil)
			var (
				mu       sync.Mutex
				failures int
			)
			sink := func(_ context.Context, job async.Job, out *pipeline.Outcome, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures++
					printError("%s: %v\n", job.Dir, err)
					return
				}
				target := job.Dir
				if outDir != "" {
					target = filepath.Join(outDir, filepath.Base(job.Dir))
				}
				written, werr := exp.WriteFiles(target, outputBase, out)
				if werr != nil {
					failures++
					printError("%s: %v\n", job.Dir, werr)
					return
				}
				printSummary(job.Dir, out, written)
			}

			q := async.NewReviewQueue(a.Processor, nil,
				async.WithWorkers(cfg.Queue.Workers),
				async.WithQueueSize(cfg.Queue.Size),
				async.WithReviewTimeout(cfg.Review.Timeout),
				async.WithSink(sink),
			)
			for _, dir := range dirs {
				if err := q.Enqueue(ctx, async.Job{Dir: dir, SubmittedAt: time.Now()}); err != nil {
					break
				}
			}
			q.Shutdown(context.Background())

			fmt.Printf("Batch complete: %d expedientes, %d failures\n", len(dirs), failures)
			if failures > 0 {
				return errors.New("some expedientes could not be reviewed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output root (defaults to each expediente directory)")
	return cmd
}
