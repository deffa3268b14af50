package battery

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSupply(t *testing.T, capacity, status string) *SysfsSensor {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "BAT1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if capacity != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "capacity"), []byte(capacity), 0o644))
	}
	if status != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "status"), []byte(status), 0o644))
	}
	return NewSysfsSensor(WithRoot(root), WithName("BAT1"))
}

func TestSysfsSensorReads(t *testing.T) {
	t.Parallel()
	s := fakeSupply(t, "15\n", "Discharging\n")

	pct, err := s.Percentage()
	require.NoError(t, err)
	assert.Equal(t, 15, pct)

	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, Discharging, st)
}

func TestSysfsSensorDefaults(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/sys/class/power_supply/BAT0", NewSysfsSensor().Dir())
	assert.Equal(t, "/sys/class/power_supply/BAT0", NewSysfsSensor(WithName(" "), WithRoot("")).Dir())
}

func TestSysfsSensorErrors(t *testing.T) {
	t.Parallel()

	missing := fakeSupply(t, "", "")
	_, err := missing.Percentage()
	assert.ErrorIs(t, err, ErrRead)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "unable to get battery percentage")

	_, err = missing.Status()
	assert.ErrorIs(t, err, ErrRead)

	garbage := fakeSupply(t, "lots", "Exploding")
	_, err = garbage.Percentage()
	assert.ErrorIs(t, err, ErrParse)
	assert.False(t, errors.Is(err, ErrRead))

	_, err = garbage.Status()
	assert.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "Exploding")
}

func TestParseStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Status
	}{
		{"charging", Charging},
		{"Charging", Charging},
		{"not charging", NotCharging},
		{"Not charging", NotCharging},
		{"discharging", Discharging},
		{"Discharging", Discharging},
		{"full", Full},
		{"Full", Full},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "FULL", "Not Charging", "unknown"} {
		_, err := ParseStatus(bad)
		assert.ErrorIs(t, err, ErrParse, bad)
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	for _, st := range []Status{Charging, NotCharging, Discharging, Full} {
		got, err := ParseStatus(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	assert.Equal(t, "Unknown", StatusUnknown.String())
}
