package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"koroflow/internal/database"
	dErrors "koroflow/pkg/domain-errors"
	"koroflow/internal/schema"
)

type MemoryRunnerSuite struct {
	suite.Suite
	store  *Store
	runner *Runner
}

func TestMemoryRunnerSuite(t *testing.T) {
	suite.Run(t, new(MemoryRunnerSuite))
}

func (s *MemoryRunnerSuite) SetupTest() {
	resolver, err := schema.NewResolver(schema.Config{})
	s.Require().NoError(err)
	s.store = New(resolver, database.IDConfig{})
	s.runner = NewRunner(s.store)
}

func (s *MemoryRunnerSuite) TestRunsCallbackWithStore() {
	ctx := database.WithTxKey(context.Background(), "subject-1")

	err := s.runner.RunInTx(ctx, func(ctx context.Context, a database.Adapter) error {
		_, err := a.Create(ctx, schema.EntityUser, database.Row{"externalId": "ext-1"}, nil)
		return err
	})
	s.Require().NoError(err)

	n, err := s.store.Count(context.Background(), schema.EntityUser, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *MemoryRunnerSuite) TestCallbackErrorPropagates() {
	boom := errors.New("write rejected")
	err := s.runner.RunInTx(context.Background(), func(context.Context, database.Adapter) error {
		return boom
	})
	s.Require().ErrorIs(err, boom)
}

func (s *MemoryRunnerSuite) TestCancelledContextAborts() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.runner.RunInTx(ctx, func(context.Context, database.Adapter) error {
		s.Fail("callback must not run")
		return nil
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

// TestSameKeySerializes verifies two units of work for the same subject
// never overlap.
func (s *MemoryRunnerSuite) TestSameKeySerializes() {
	ctx := database.WithTxKey(context.Background(), "subject-1")

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.runner.RunInTx(ctx, func(context.Context, database.Adapter) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()
	s.Equal(1, maxInside)
}
