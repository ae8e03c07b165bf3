package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosim/internal/cost"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brokers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderInitialSnapshot(t *testing.T) {
	path := writeProfile(t, `
default: alpha
brokers:
  alpha:
    rate: 0.00015
    floor: 100
  beta:
    rate: 0.0001
    floor: 50
    cap: 30000
`)
	l, err := NewBrokerLoader(path)
	require.NoError(t, err)

	snap := l.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, "alpha", snap.Default)
	require.Len(t, snap.Brokers, 2)
	assert.Equal(t, 0.00015, snap.Brokers["alpha"].Rate)
	assert.Equal(t, 30000.0, snap.Brokers["beta"].Cap)
}

func TestSnapshotScheduleFallback(t *testing.T) {
	path := writeProfile(t, `
default: alpha
brokers:
  alpha:
    rate: 0.0002
    floor: 200
`)
	l, err := NewBrokerLoader(path)
	require.NoError(t, err)

	snap := l.Snapshot()
	// 空 id 走 default
	assert.Equal(t, 0.0002, snap.Schedule("").Rate)
	// 未知券商回退内置缺省
	assert.Equal(t, cost.DefaultBroker, snap.Schedule("ghost"))
}

func TestLoaderRejectsBadProfile(t *testing.T) {
	_, err := NewBrokerLoader(writeProfile(t, "default: ghost\nbrokers:\n  alpha:\n    rate: 0.0001\n"))
	assert.Error(t, err, "default 指向未定义券商应报错")

	_, err = NewBrokerLoader(writeProfile(t, "brokers:\n  alpha:\n    rate: 2.0\n"))
	assert.Error(t, err, "费率超界应报错")
}

func TestReloadBumpsVersion(t *testing.T) {
	path := writeProfile(t, "brokers:\n  alpha:\n    rate: 0.0001\n")
	l, err := NewBrokerLoader(path)
	require.NoError(t, err)
	require.Equal(t, int64(1), l.Snapshot().Version)

	require.NoError(t, os.WriteFile(path, []byte("brokers:\n  alpha:\n    rate: 0.0003\n"), 0o644))
	require.NoError(t, l.v.ReadInConfig())
	require.NoError(t, l.reload())

	snap := l.Snapshot()
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, 0.0003, snap.Brokers["alpha"].Rate)
}

func TestSubscribeDeliversSnapshot(t *testing.T) {
	path := writeProfile(t, "brokers:\n  alpha:\n    rate: 0.0001\n")
	l, err := NewBrokerLoader(path)
	require.NoError(t, err)

	ch := make(chan BrokerSnapshot, 1)
	l.Subscribe(func(s BrokerSnapshot) { ch <- s })

	select {
	case snap := <-ch:
		assert.Equal(t, 0.0001, snap.Brokers["alpha"].Rate)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe 未收到初始快照")
	}
}
