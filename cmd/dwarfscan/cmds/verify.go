package cmds

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/go-delve/dwarfscan/pkg/dwarf/debuginfo"
	"github.com/go-delve/dwarfscan/pkg/dwarf/reader"
)

// verifyStats counts what verify decoded.
type verifyStats struct {
	units   *atomic.Uint64
	entries *atomic.Uint64
	rows    *atomic.Uint64
}

type unitError struct {
	unit uint64
	err  error
}

func (e unitError) Error() string {
	return fmt.Sprintf("unit %#x: %v", e.unit, e.err)
}

// verify decodes every entry and every line program row of d using at most
// jobs goroutines. Every failure is returned, sorted by unit offset.
func verify(ctx context.Context, d *debuginfo.Data, jobs int) (*verifyStats, []error) {
	stats := &verifyStats{
		units:   atomic.NewUint64(0),
		entries: atomic.NewUint64(0),
		rows:    atomic.NewUint64(0),
	}

	var (
		mu   sync.Mutex
		errs []unitError
	)
	fail := func(unit uint64, err error) {
		mu.Lock()
		errs = append(errs, unitError{unit, err})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}

	units := d.Units()
	for {
		u, err := units.Next()
		if err != nil {
			// the length of the broken unit header is unknown, nothing
			// after it can be found
			fail(units.Off(), err)
			break
		}
		if u == nil {
			break
		}
		stats.units.Inc()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := verifyUnit(d, u, stats); err != nil {
				fail(u.Offset, err)
			}
			if err := verifyLines(d, u, stats); err != nil {
				fail(u.Offset, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fail(0, err)
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].unit < errs[j].unit })
	r := make([]error, len(errs))
	for i := range errs {
		r[i] = errs[i]
	}
	return stats, r
}

func verifyUnit(d *debuginfo.Data, u *reader.Unit, stats *verifyStats) error {
	c, err := d.Entries(u)
	if err != nil {
		return err
	}
	for {
		e, err := c.Next()
		if err != nil {
			return err
		}
		if e == nil {
			break
		}
		stats.entries.Inc()
	}
	if c.Depth() != 0 {
		return fmt.Errorf("entry tree ends at depth %d", c.Depth())
	}
	return nil
}

func verifyLines(d *debuginfo.Data, u *reader.Unit, stats *verifyStats) error {
	h, err := d.LineProgram(u)
	if err != nil || h == nil {
		return err
	}
	sm := h.NewStateMachine()
	ended := true
	for {
		row, err := sm.NextRow()
		if err != nil {
			return err
		}
		if row == nil {
			break
		}
		stats.rows.Inc()
		ended = row.EndSequence
	}
	if !ended {
		return fmt.Errorf("line program at %#x: last sequence has no end_sequence", h.Offset)
	}
	return nil
}
