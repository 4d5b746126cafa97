package postcard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/postcard/app/feed"
)

type autoPostFixture struct {
	store  *memStore
	source *fakeSource
	sender *fakeSender
	clock  *clock
	poster *AutoPoster
}

func newAutoPostFixture(t *testing.T, now time.Time, snapshots ...[]feed.Entry) *autoPostFixture {
	t.Helper()

	f := &autoPostFixture{
		store:  newMemStore(),
		source: &fakeSource{snapshots: snapshots},
		sender: &fakeSender{},
	}
	resolver, c := newTestResolver(f.store, f.source, now)
	f.clock = c
	f.poster = NewAutoPoster(resolver, f.store, f.store, f.sender)

	require.NoError(t, f.store.SetDestination(context.Background(), "guild-1", "chan-1"))
	return f
}

func TestAutoPosterTooEarly(t *testing.T) {
	f := newAutoPostFixture(t, time.Date(2024, 1, 2, 11, 59, 0, 0, time.UTC),
		[]feed.Entry{entry("today", 2024, time.January, 2)})

	result, err := f.poster.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeTooEarly, result.Outcome)
	assert.Zero(t, f.source.Calls(), "hour gate is checked before the feed")
	assert.Empty(t, f.sender.Sent())
}

func TestAutoPosterPublishesAtThresholdHour(t *testing.T) {
	f := newAutoPostFixture(t, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
		[]feed.Entry{entry("today", 2024, time.January, 2)})

	result, err := f.poster.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, result.Outcome)
	assert.Equal(t, 1, result.Sent)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "chan-1", sent[0].channelID)
	assert.Equal(t, "today", sent[0].msg.Title)
	assert.Equal(t, ImageURL, sent[0].msg.ImageURL)
}

func TestAutoPosterAlreadyPublishedNeverRepeats(t *testing.T) {
	f := newAutoPostFixture(t, time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
		[]feed.Entry{entry("today", 2024, time.January, 2)})
	require.NoError(t, f.store.SetLastPublished(context.Background(), feed.Date{Year: 2024, Month: time.January, Day: 2}))

	for i := 0; i < 10; i++ {
		result, err := f.poster.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyPublished, result.Outcome)
	}

	assert.Empty(t, f.sender.Sent())
	assert.Zero(t, f.source.Calls())
}

func TestAutoPosterPublishesOnceWhenPostAppearsOnThirdTick(t *testing.T) {
	yesterday := []feed.Entry{entry("yesterday", 2024, time.January, 1)}
	withToday := []feed.Entry{entry("yesterday", 2024, time.January, 1), entry("today", 2024, time.January, 2)}

	start := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	f := newAutoPostFixture(t, start, yesterday, yesterday, withToday)

	var outcomes []Outcome
	for tick := 0; tick < 8; tick++ {
		f.clock.Set(start.Add(time.Duration(tick) * 15 * time.Minute))
		result, err := f.poster.Run(context.Background())
		require.NoError(t, err)
		outcomes = append(outcomes, result.Outcome)
	}

	assert.Equal(t, []Outcome{
		OutcomeNotAvailable,
		OutcomeNotAvailable,
		OutcomePublished,
		OutcomeAlreadyPublished,
		OutcomeAlreadyPublished,
		OutcomeAlreadyPublished,
		OutcomeAlreadyPublished,
		OutcomeAlreadyPublished,
	}, outcomes)
	assert.Len(t, f.sender.Sent(), 1)
	assert.Equal(t, 3, f.source.Calls())
}

func TestAutoPosterNextDayPublishesAgain(t *testing.T) {
	f := newAutoPostFixture(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		[]feed.Entry{entry("day1", 2024, time.January, 1)},
		[]feed.Entry{entry("day1", 2024, time.January, 1), entry("day2", 2024, time.January, 2)})

	result, err := f.poster.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomePublished, result.Outcome)

	f.clock.Set(time.Date(2024, 1, 2, 12, 30, 0, 0, time.UTC))
	result, err = f.poster.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomePublished, result.Outcome)

	sent := f.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "day1", sent[0].msg.Title)
	assert.Equal(t, "day2", sent[1].msg.Title)
}

func TestAutoPosterMarksBeforeBroadcasting(t *testing.T) {
	f := newAutoPostFixture(t, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
		[]feed.Entry{entry("today", 2024, time.January, 2)})

	var markedBeforeSend bool
	f.sender.before = func(string) {
		state, _ := f.store.GetAutoPostState(context.Background())
		markedBeforeSend = state.LastPublished != nil && state.LastPublished.String() == "2024/1/2"
	}

	_, err := f.poster.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, markedBeforeSend)
}

func TestAutoPosterDestinationFailureDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	f := newAutoPostFixture(t, time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC),
		[]feed.Entry{entry("today", 2024, time.January, 2)})
	require.NoError(t, f.store.SetDestination(ctx, "guild-0", "broken"))
	require.NoError(t, f.store.SetDestination(ctx, "guild-2", "chan-2"))
	f.sender.fail = map[string]bool{"broken": true}

	result, err := f.poster.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, result.Outcome)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)

	state, err := f.store.GetAutoPostState(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.LastPublished, "a failed destination must not revert the mark")

	result, err = f.poster.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPublished, result.Outcome)
	assert.Len(t, f.sender.Sent(), 2)
}

func TestAutoPosterNoDestinations(t *testing.T) {
	ctx := context.Background()
	f := newAutoPostFixture(t, time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC),
		[]feed.Entry{entry("today", 2024, time.January, 2)})
	require.NoError(t, f.store.ClearDestination(ctx, "guild-1"))

	result, err := f.poster.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, result.Outcome)
	assert.Zero(t, result.Sent)
	assert.Empty(t, f.sender.Sent())
}

func TestAutoPosterFetchErrorLeavesStateUntouched(t *testing.T) {
	f := newAutoPostFixture(t, time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC))
	f.source.err = errors.New("timeout")

	_, err := f.poster.Run(context.Background())

	var fetchErr *feed.FetchError
	require.ErrorAs(t, err, &fetchErr)

	state, err := f.store.GetAutoPostState(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state.LastPublished)
	assert.Empty(t, f.sender.Sent())

	f.source.err = nil
	f.source.snapshots = [][]feed.Entry{{entry("today", 2024, time.January, 2)}}

	result, err := f.poster.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, result.Outcome)
}

func TestAutoPosterHourZeroAlwaysOpen(t *testing.T) {
	f := newAutoPostFixture(t, time.Date(2024, 1, 2, 0, 5, 0, 0, time.UTC),
		[]feed.Entry{entry("today", 2024, time.January, 2)})
	require.NoError(t, f.store.SetPublishHour(context.Background(), 0))

	result, err := f.poster.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, result.Outcome)
}

func TestAutoPosterConcurrentRunsPublishOnce(t *testing.T) {
	f := newAutoPostFixture(t, time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
		[]feed.Entry{entry("today", 2024, time.January, 2)})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.poster.Run(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.sender.Sent(), 1)
	assert.Equal(t, 1, f.source.Calls())
	assert.Equal(t, 1, f.store.markCalls)
}
