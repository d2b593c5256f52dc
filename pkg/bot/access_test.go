package bot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	alerts []string
}

func (r *recordingNotifier) NotifyAdmin(html string) {
	r.alerts = append(r.alerts, html)
}

func TestGateAllowsListedUser(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGate([]int64{1, 2}, false, n, nil)

	require.True(t, g.Check(1, "alice", "Alice", ""))
	require.True(t, g.Check(2, "bob", "Bob", "B"))
	require.Empty(t, n.alerts)
}

func TestGateDeniesAndNotifiesEveryAttempt(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGate([]int64{1}, false, n, nil)

	require.False(t, g.Check(666, "intruder", "Eve", ""))
	require.False(t, g.Check(666, "intruder", "Eve", ""))
	require.False(t, g.Check(666, "intruder", "Eve", ""))

	// Each denied attempt raises its own alert, even from the same user.
	require.Len(t, n.alerts, 3)
	require.Contains(t, n.alerts[0], "666")
	require.Contains(t, n.alerts[0], "@intruder")
	require.Contains(t, n.alerts[2], "666")
}

func TestGateNotifiesPerDistinctUser(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGate(nil, false, n, nil)

	g.Check(10, "a", "", "")
	g.Check(20, "b", "", "")
	require.Len(t, n.alerts, 2)
}

func TestGateAutoKill(t *testing.T) {
	killed := 0
	n := &recordingNotifier{}
	g := NewGate([]int64{1}, true, n, func() { killed++ })

	require.False(t, g.Check(666, "x", "", ""))
	require.Equal(t, 1, killed)
	require.Contains(t, n.alerts[0], "Auto-kill")
}

func TestGateReload(t *testing.T) {
	g := NewGate([]int64{1}, false, &recordingNotifier{}, nil)
	require.False(t, g.Check(2, "", "", ""))

	g.Reload([]int64{1, 2})
	require.True(t, g.Check(2, "", "", ""))

	g.Reload([]int64{2})
	require.False(t, g.Check(1, "", "", ""))
}

func TestGateEscapesIntruderInfo(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGate(nil, false, n, nil)

	g.Check(5, `<script>`, "Bad", "<Actor>")
	require.Len(t, n.alerts, 1)
	require.NotContains(t, n.alerts[0], "<script>")
	require.Contains(t, n.alerts[0], "&lt;script&gt;")
}
