package notifier

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batteryfriend/internal/config"
	"batteryfriend/internal/eventbus"
	"batteryfriend/internal/rules"
	logx "batteryfriend/pkg/logx"
)

// fakeSink hands out increasing ids and records every payload.
type fakeSink struct {
	mu     sync.Mutex
	next   uint32
	shown  []Payload
	failOn map[string]error
}

func (f *fakeSink) Show(_ context.Context, p Payload) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[p.Summary]; err != nil {
		return 0, err
	}
	f.shown = append(f.shown, p)
	if p.ReplacesID != 0 {
		return p.ReplacesID, nil
	}
	f.next++
	return f.next, nil
}

func match(name string, r config.Rule) rules.Match { return rules.Match{Name: name, Rule: r} }

var testSettings = Settings{AppName: "battery-friend", ExpireTimeout: time.Second, RatePerSec: 100}

func TestDispatchReusesIdentity(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	d := NewDispatcher(sink, nil)
	ms := []rules.Match{match("low", config.Rule{Summary: "Battery at {percent}%"})}

	n, err := d.Dispatch(context.Background(), testSettings, ms, 15)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = d.Dispatch(context.Background(), testSettings, ms, 14)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, sink.shown, 2)
	assert.Equal(t, "Battery at 15%", sink.shown[0].Summary)
	assert.Zero(t, sink.shown[0].ReplacesID)
	assert.Equal(t, "battery-friend", sink.shown[0].AppName)
	assert.Equal(t, time.Second, sink.shown[0].ExpireTimeout)
	assert.Equal(t, "Battery at 14%", sink.shown[1].Summary)
	assert.Equal(t, uint32(1), sink.shown[1].ReplacesID)
}

func TestDispatchFreshIdentityAfterPrune(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	d := NewDispatcher(sink, nil)
	ms := []rules.Match{match("low", config.Rule{Summary: "x"})}

	_, err := d.Dispatch(context.Background(), testSettings, ms, 15)
	require.NoError(t, err)
	d.Tracker().Prune(func(string) bool { return false })
	_, err = d.Dispatch(context.Background(), testSettings, ms, 15)
	require.NoError(t, err)

	require.Len(t, sink.shown, 2)
	assert.Zero(t, sink.shown[1].ReplacesID)
	id, ok := d.Tracker().Get("low")
	assert.True(t, ok)
	assert.Equal(t, uint32(2), id)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	sink := &fakeSink{failOn: map[string]error{"broken": errors.New("server gone")}}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	d := NewDispatcher(sink, nil, WithLogger(logx.NewWriter(&buf, "debug")), WithBus(bus))

	ms := []rules.Match{
		match("a-bad-urgency", config.Rule{Summary: "a", Urgency: "loud"}),
		match("b-show-fails", config.Rule{Summary: "broken"}),
		match("c-ok", config.Rule{Summary: "fine"}),
	}
	n, err := d.Dispatch(context.Background(), testSettings, ms, 15)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, sink.shown, 1)
	assert.Equal(t, "fine", sink.shown[0].Summary)
	assert.Equal(t, 1, d.Tracker().Len())
	_, ok := d.Tracker().Get("b-show-fails")
	assert.False(t, ok)

	assert.Equal(t, 2, strings.Count(buf.String(), `"level":"error"`))
	assert.Contains(t, buf.String(), "unable to build a notification")
	assert.Contains(t, buf.String(), "unable to show a notification")

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Equal(t, []string{
		eventbus.TypeNotificationFailed,
		eventbus.TypeNotificationFailed,
		eventbus.TypeNotificationShown,
	}, types)
}

func TestDispatchStopsOnCancel(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	d := NewDispatcher(sink, nil)
	ms := []rules.Match{match("a", config.Rule{}), match("b", config.Rule{})}

	// Drain the one-token bucket so the second match has to wait.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	n, err := d.Dispatch(ctx, Settings{RatePerSec: 1}, ms[:1], 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	cancel()
	n, err = d.Dispatch(ctx, Settings{RatePerSec: 1}, ms, 1)
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestLimiterFollowsSettings(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(&fakeSink{}, nil)
	l := d.limiterFor(5)
	assert.Equal(t, 5, l.Burst())
	assert.Same(t, l, d.limiterFor(9))
	assert.Equal(t, 9, l.Burst())
	assert.Equal(t, 1, d.limiterFor(0).Burst())
}
