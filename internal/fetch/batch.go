package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sfg-os/starpack/internal/output"
)

// Request names one transfer in a batch.
type Request struct {
	URL  string
	Dest string
}

// FetchAll runs the given transfers with at most 10 in flight. A
// failing transfer marks the batch failed but the remaining transfers
// are drained so their files land in the cache; partial files of the
// failed ones are already removed by Download. The returned error
// joins every individual failure.
func (f *Fetcher) FetchAll(ctx context.Context, reqs []Request, description string) error {
	if len(reqs) == 0 {
		return nil
	}

	bar := output.NewProgress(len(reqs), description)

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrent)

	var mu sync.Mutex
	var failures []error

	for _, req := range reqs {
		req := req
		g.Go(func() error {
			if err := f.Download(ctx, req.URL, req.Dest); err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
			bar.Increment()
			return nil
		})
	}

	g.Wait()
	bar.Finish()

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d transfers failed: %w", len(failures), len(reqs), errors.Join(failures...))
	}
	return nil
}
