package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTrackerLifecycle(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.Tracker("s1")
	assert.Same(t, tracker, svc.Tracker("s1"))

	sub := tracker.Subscribe()
	initial := <-sub
	assert.Equal(t, ProgressIdle, initial.Status)

	report := svc.Reporter("s1")
	assert.Equal(t, ProgressRunning, (<-sub).Status)

	report(ProgressEvent{Stage: StageTopic, Topic: "Pizza", Total: 2})
	report(ProgressEvent{Stage: StageTyping, Turn: 1, Total: 2, Speaker: "Joey"})
	report(ProgressEvent{Stage: StageTurn, Turn: 1, Total: 2, Speaker: "Joey"})
	report(ProgressEvent{Stage: StageDone, Turn: 2, Total: 2})

	topic := <-sub
	assert.Equal(t, "Topic: Pizza", topic.Message)
	typing := <-sub
	assert.Equal(t, "Joey is typing...", typing.Message)
	assert.Equal(t, "Pizza", typing.Topic)
	turn := <-sub
	assert.Equal(t, 50, turn.Progress)
	done := <-sub
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, ProgressCompleted, done.Status)

	tracker.Unsubscribe(sub)
	tracker.Unsubscribe(sub)
	_, open := <-sub
	assert.False(t, open)
}

func TestProgressFail(t *testing.T) {
	tracker := NewProgressService().Tracker("s")
	tracker.Start()
	tracker.Fail("boom")

	cur := tracker.Current()
	assert.Equal(t, ProgressFailed, cur.Status)
	assert.Contains(t, cur.Message, "boom")
}

func TestCleanupIdleTrackers(t *testing.T) {
	svc := NewProgressService()
	idle := svc.Tracker("idle")
	busy := svc.Tracker("busy")
	sub := busy.Subscribe()
	defer busy.Unsubscribe(sub)

	idle.UpdateTime = time.Now().Add(-time.Hour)
	busy.UpdateTime = time.Now().Add(-time.Hour)

	require.Equal(t, 1, svc.CleanupIdleTrackers(time.Minute))
	assert.Equal(t, 1, busy.SubscriberCount())
}
