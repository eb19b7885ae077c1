package eventbus

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type progressEvent struct {
	done, total int
}

type finishedEvent struct {
	jobID string
}

func bufferedLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_RoutesBySignature(t *testing.T) {
	publisher := NewEventPublisher(nil)

	var progress []int
	var finished string
	publisher.Subscribe(func(e *progressEvent) { progress = append(progress, e.done) })
	publisher.Subscribe(func(e *finishedEvent) { finished = e.jobID })

	publisher.Publish(&progressEvent{done: 1, total: 2})
	publisher.Publish(&progressEvent{done: 2, total: 2})
	publisher.Publish(&finishedEvent{jobID: "job-1"})

	require.Equal(t, []int{1, 2}, progress)
	require.Equal(t, "job-1", finished)
	require.Equal(t, 2, publisher.SubscribersCount())
}

func TestPublisher_WarnsWithoutSubscribers(t *testing.T) {
	log, buf := bufferedLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *finishedEvent) { t.Error("should not be called") })

	publisher.Publish(&progressEvent{})

	require.Contains(t, buf.String(), "eventbus.Publish: no matching subscribers")
}

func TestPublisher_PanicIsRecoveredAndOthersRun(t *testing.T) {
	log, buf := bufferedLogger(logrus.ErrorLevel)
	publisher := NewEventPublisher(log)

	called := false
	publisher.Subscribe(func(e *progressEvent) { panic("boom") })
	publisher.Subscribe(func(e *progressEvent) { called = true })

	require.NotPanics(t, func() { publisher.Publish(&progressEvent{}) })
	require.True(t, called)
	require.Contains(t, buf.String(), "panicked")
	require.Contains(t, buf.String(), "boom")
}

func TestPublisher_ConcurrentPublish(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var count atomic.Int64
	publisher.Subscribe(func(e *progressEvent) { count.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			publisher.Publish(&progressEvent{done: i})
		}(i)
	}
	wg.Wait()
	require.EqualValues(t, 64, count.Load())
}

func TestPublisher_UnsubscribeAndClear(t *testing.T) {
	publisher := NewEventPublisher(nil)
	handler := func(e *finishedEvent) {}
	other := func(e *progressEvent) {}
	publisher.Subscribe(handler)
	publisher.Subscribe(other)

	publisher.Unsubscribe(handler)
	require.Equal(t, 1, publisher.SubscribersCount())

	publisher.Clear()
	require.Equal(t, 0, publisher.SubscribersCount())
}

func TestPublisher_SubscribeRejectsNonFunc(t *testing.T) {
	require.Panics(t, func() { NewEventPublisher(nil).Subscribe(42) })
}

func TestMatchSignature(t *testing.T) {
	require.True(t, MatchSignature(func(e *progressEvent) {}, []interface{}{&progressEvent{}}))
	require.False(t, MatchSignature(func(e *progressEvent) {}, []interface{}{&finishedEvent{}}))
	require.False(t, MatchSignature(func(e *progressEvent) {}, []interface{}{}))
	require.False(t, MatchSignature(func(e *progressEvent) {}, []interface{}{&progressEvent{}, &progressEvent{}}))
	require.True(t, MatchSignature(func(ctx context.Context) {}, []interface{}{context.Background()}))
	require.True(t, MatchSignature(func(e *progressEvent) {}, []interface{}{nil}))
	require.False(t, MatchSignature("not a func", nil))
}
