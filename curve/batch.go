package curve

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// BatchOptions controls AnalyzeBatch.
type BatchOptions struct {
	Options
	// Workers bounds the number of concurrent fits. Zero means one per curve.
	Workers int
	// Progress, when non-nil, receives a progress bar.
	Progress io.Writer
}

// BatchResult is the analysis of one named curve.
type BatchResult struct {
	Name     string
	Analysis Analysis
	Err      error
}

// AnalyzeBatch analyses every curve concurrently. Results are ordered by name.
// Curves not started before ctx is done report ctx.Err().
func AnalyzeBatch(ctx context.Context, curves map[string][]Point, opts BatchOptions) []BatchResult {
	names := make([]string, 0, len(curves))
	for name := range curves {
		names = append(names, name)
	}
	sort.Strings(names)

	workers := opts.Workers
	if workers <= 0 || workers > len(names) {
		workers = len(names)
	}
	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressBar(len(names), opts.Progress)
	}

	results := make([]BatchResult, len(names))
	jobs := make(chan int, len(names))
	for i := range names {
		jobs <- i
	}
	close(jobs)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				name := names[i]
				if err := ctx.Err(); err != nil {
					results[i] = BatchResult{Name: name, Err: err}
					continue
				}
				a, err := Analyze(curves[name], opts.Options)
				results[i] = BatchResult{Name: name, Analysis: a, Err: err}
				if bar != nil {
					mu.Lock()
					bar.Describe(fmt.Sprintf("Fitted %v\t", name))
					bar.Add(1)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	if bar != nil {
		bar.Finish()
	}
	return results
}

func progressBar(length int, w io.Writer) *progressbar.ProgressBar {
	bar := progressbar.NewOptions(
		length,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetVisibility(true),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	return bar
}
