package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"cardstock/internal/config"
	"cardstock/internal/model"
	"cardstock/internal/repository"
	"cardstock/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	err  error
	keys []string
}

func (p *fakePublisher) Publish(topic, key, value string) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	return nil
}

func jobConfig() *config.Config {
	return &config.Config{
		Auth:     config.AuthConfig{SessionIdleMinutes: 30},
		Business: config.BusinessConfig{OutboxMaxRetry: 2},
	}
}

func TestOutboxSender_SendsPending(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	require.NoError(t, repo.Enqueue(ctx, nil, "cardstock.stock", model.EventMovementCreated, "MV-1", map[string]int{"quantity": 5}))
	require.NoError(t, repo.Enqueue(ctx, nil, "cardstock.audit", model.EventUserLogin, "a@bank.test", map[string]int{"user_id": 1}))

	pub := &fakePublisher{}
	sender := NewOutboxSender(db, pub, jobConfig())
	assert.Equal(t, 2, sender.processPendingMessages(ctx))
	assert.Equal(t, []string{"MV-1", "a@bank.test"}, pub.keys)

	n, err := repo.CountByStatus(ctx, model.OutboxStatusSent)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 0, sender.processPendingMessages(ctx))
}

func TestOutboxSender_MarksFailedAfterMaxRetry(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	require.NoError(t, repo.Enqueue(ctx, nil, "cardstock.stock", model.EventStockAlert, "1", map[string]int{}))

	sender := NewOutboxSender(db, &fakePublisher{err: errors.New("broker down")}, jobConfig())

	assert.Equal(t, 0, sender.processPendingMessages(ctx))
	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	sender.processPendingMessages(ctx)
	failed, err := repo.CountByStatus(ctx, model.OutboxStatusFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)

	var msg model.OutboxMessage
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, 2, msg.RetryCount)
}

type fakeExpirer struct {
	batches []int
	before  []time.Time
	err     error
}

func (f *fakeExpirer) ExpireIdle(_ context.Context, before time.Time, limit int) (int, error) {
	f.before = append(f.before, before)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	return n, nil
}

func TestSessionExpiryJob_DrainsFullBatches(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := &fakeExpirer{batches: []int{2, 2, 1}}

	j := NewSessionExpiryJob(exp, jobConfig())
	j.batchSize = 2
	j.now = func() time.Time { return now }

	assert.Equal(t, 5, j.expireIdleSessions(context.Background()))
	require.Len(t, exp.before, 3)
	assert.Equal(t, now.Add(-30*time.Minute), exp.before[0])
}

func TestSessionExpiryJob_StopsOnError(t *testing.T) {
	exp := &fakeExpirer{err: errors.New("db down")}
	j := NewSessionExpiryJob(exp, jobConfig())
	assert.Equal(t, 0, j.expireIdleSessions(context.Background()))
	assert.Len(t, exp.before, 1)
}

func TestJobs_StopOnContextCancel(t *testing.T) {
	db := testutil.NewDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{}, 2)
	go func() { NewOutboxSender(db, &fakePublisher{}, jobConfig()).Start(ctx); done <- struct{}{} }()
	go func() { NewSessionExpiryJob(&fakeExpirer{}, jobConfig()).Start(ctx); done <- struct{}{} }()
	cancel()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not stop")
		}
	}
}
