package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSnapshotReplace(t *testing.T) {
	first := &Config{PollInterval: "1m", Rules: map[string]Rule{"a": {From: 1, To: 2}}}
	s := NewStore(first)

	got, err := s.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, got)

	second := &Config{PollInterval: "5m", Rules: map[string]Rule{"b": {From: 3, To: 4}}}
	require.NoError(t, s.Replace(second))

	// An earlier snapshot keeps observing the old value in full.
	assert.Equal(t, "1m", got.PollInterval)
	assert.Contains(t, got.Rules, "a")

	got, err = s.Snapshot()
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.NotEqual(t, hashConfig(first), s.Hash())

	assert.Error(t, s.Replace(nil))
}

func TestStoreConcurrentReadersSeeWholeConfigs(t *testing.T) {
	a := &Config{PollInterval: "1m", Rules: map[string]Rule{"a": {}}}
	b := &Config{PollInterval: "2m", Rules: map[string]Rule{"b": {}}}
	s := NewStore(a)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				cfg, err := s.Snapshot()
				if err != nil {
					t.Error(err)
					return
				}
				switch cfg.PollInterval {
				case "1m":
					assert.Contains(t, cfg.Rules, "a")
				case "2m":
					assert.Contains(t, cfg.Rules, "b")
				}
			}
		}()
	}
	for j := 0; j < 500; j++ {
		next := a
		if j%2 == 0 {
			next = b
		}
		require.NoError(t, s.Replace(next))
	}
	wg.Wait()
}

func TestStorePoisonedAfterPanic(t *testing.T) {
	s := NewStore(&Config{})

	assert.Panics(t, func() {
		_ = s.View(func(*Config) error { panic("boom") })
	})

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrPoisoned)
	assert.ErrorIs(t, s.Replace(&Config{}), ErrPoisoned)
	assert.ErrorIs(t, s.View(func(*Config) error { return nil }), ErrPoisoned)
}
