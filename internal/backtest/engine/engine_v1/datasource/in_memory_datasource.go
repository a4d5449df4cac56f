package datasource

import (
	"context"
	"iter"

	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

// InMemoryDataSource replays a slice of events. The slice is never mutated,
// so concurrent passes share it without copying.
type InMemoryDataSource struct {
	events    []types.MarketEvent
	malformed int
}

func NewInMemoryDataSource(events []types.MarketEvent) *InMemoryDataSource {
	return &InMemoryDataSource{events: events}
}

// Preload reads one full pass of underlying into memory. Malformed rows are
// dropped and counted; any other error aborts the preload.
func Preload(ctx context.Context, underlying DataSource) (*InMemoryDataSource, error) {
	source := &InMemoryDataSource{}

	for event, err := range underlying.Open(ctx) {
		if err != nil {
			if IsMalformed(err) {
				source.malformed++

				continue
			}

			return nil, errors.Wrap(errors.ErrCodeDataNotFound, "failed to preload market data", err)
		}

		source.events = append(source.events, event)
	}

	return source, nil
}

// Open implements DataSource.
func (m *InMemoryDataSource) Open(ctx context.Context) iter.Seq2[types.MarketEvent, error] {
	return func(yield func(types.MarketEvent, error) bool) {
		for _, event := range m.events {
			if err := ctx.Err(); err != nil {
				yield(nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "market data pass cancelled", err))

				return
			}

			if !yield(event, nil) {
				return
			}
		}
	}
}

// Count implements DataSource.
func (m *InMemoryDataSource) Count(ctx context.Context) (int, error) {
	return len(m.events), nil
}

// Close implements DataSource.
func (m *InMemoryDataSource) Close() error {
	return nil
}

// Events returns the preloaded events. Callers must not modify the slice.
func (m *InMemoryDataSource) Events() []types.MarketEvent {
	return m.events
}

// Malformed returns the number of rows dropped by Preload.
func (m *InMemoryDataSource) Malformed() int {
	return m.malformed
}
