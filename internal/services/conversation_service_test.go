package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTopic string

func (f fixedTopic) FetchTopic(ctx context.Context) string { return string(f) }

func newTestEngine(t *testing.T, topic string, completer *fakeCompleter, seed uint64) *ConversationService {
	t.Helper()
	engine, err := NewConversationService(
		fixedTopic(topic),
		NewResponseService(completer, nil),
		nil,
		models.DefaultTurnCount,
		rand.New(rand.NewPCG(seed, seed)),
	)
	require.NoError(t, err)
	return engine
}

func assertNoRepeats(t *testing.T, transcript models.Transcript) {
	t.Helper()
	for i := 1; i < len(transcript); i++ {
		assert.NotEqual(t, transcript[i-1].Speaker, transcript[i].Speaker, "第 %d 轮与上一轮发言者相同", i)
	}
}

func TestRunOfflineMarsColonization(t *testing.T) {
	completer := &fakeCompleter{}
	engine := newTestEngine(t, "Mars Colonization", completer, 1)

	conv := engine.Run(context.Background(), RunOptions{})

	require.Len(t, conv.Transcript, 5)
	assert.Equal(t, "Mars Colonization", conv.Topic)
	assert.Equal(t, models.Turn{Speaker: "Manager", Text: "Topic: Mars Colonization"}, conv.Transcript[0])
	for _, turn := range conv.Transcript[1:] {
		assert.True(t, models.IsPersona(turn.Speaker))
		assert.Equal(t, "Mock response about Mars Colonization because no API key.", turn.Text)
	}
	assertNoRepeats(t, conv.Transcript)
	assert.Zero(t, completer.calls(), "无密钥时不应调用文本生成服务")
}

func TestRunNeverRepeatsSpeakerAcrossSeeds(t *testing.T) {
	for seed := uint64(0); seed < 50; seed++ {
		engine := newTestEngine(t, "Pizza", &fakeCompleter{}, seed)
		conv := engine.Run(context.Background(), RunOptions{TurnCount: models.MaxTurnCount})

		require.Len(t, conv.Transcript, 1+models.MaxTurnCount)
		assert.Equal(t, models.SpeakerManager, conv.Transcript[0].Speaker)
		assertNoRepeats(t, conv.Transcript)
	}
}

func TestRunOneFailedTurnDoesNotStopOthers(t *testing.T) {
	completer := &fakeCompleter{
		replies: []string{"one", "two", "three", "four"},
		errs:    map[int]error{1: errors.New("timeout")},
	}
	engine := newTestEngine(t, "Crypto Crash", completer, 3)

	conv := engine.Run(context.Background(), RunOptions{Credential: "key"})

	require.Len(t, conv.Transcript, 5)
	assert.Equal(t, "one", conv.Transcript[1].Text)
	assert.True(t, strings.HasPrefix(conv.Transcript[2].Text, "[AI Error: "))
	assert.Equal(t, "three", conv.Transcript[3].Text)
	assert.Equal(t, "four", conv.Transcript[4].Text)
	assert.Equal(t, 4, completer.calls())
}

func TestRunPassesGrowingHistory(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"first", "second"}}
	engine := newTestEngine(t, "Dinosaurs", completer, 5)

	conv := engine.Run(context.Background(), RunOptions{TurnCount: 2, Credential: "key"})

	require.Len(t, conv.Transcript, 3)
	require.Len(t, completer.prompts, 2)
	assert.Contains(t, completer.prompts[0], "Manager: Topic: Dinosaurs")
	assert.NotContains(t, completer.prompts[0], "first")
	assert.Contains(t, completer.prompts[1], conv.Transcript[1].Speaker+": first")
}

func TestRunTurnCountBounds(t *testing.T) {
	engine := newTestEngine(t, "x", &fakeCompleter{}, 9)

	assert.Equal(t, models.DefaultTurnCount, engine.ResolveTurnCount(0))
	assert.Equal(t, models.DefaultTurnCount, engine.ResolveTurnCount(-3))
	assert.Equal(t, models.MaxTurnCount, engine.ResolveTurnCount(50))
	assert.Equal(t, 7, engine.ResolveTurnCount(7))
}

func TestRunReportsProgress(t *testing.T) {
	engine := newTestEngine(t, "Eclipse", &fakeCompleter{}, 11)

	var events []ProgressEvent
	engine.Run(context.Background(), RunOptions{
		TurnCount: 2,
		Progress:  func(ev ProgressEvent) { events = append(events, ev) },
	})

	require.Len(t, events, 6)
	assert.Equal(t, StageTopic, events[0].Stage)
	assert.Equal(t, "Eclipse", events[0].Topic)
	assert.Equal(t, StageTyping, events[1].Stage)
	assert.Equal(t, StageTurn, events[2].Stage)
	assert.Equal(t, StageDone, events[5].Stage)
	for _, ev := range events {
		assert.Equal(t, 2, ev.Total)
	}
}

func TestNewConversationServiceRejectsSmallRoster(t *testing.T) {
	roster := &models.Roster{Personas: []models.Persona{{ID: models.PersonaJoey, Self: true}}}
	_, err := NewConversationService(fixedTopic("x"), NewResponseService(nil, nil), roster, 4, nil)
	assert.Error(t, err)
}

func TestRunTwoPersonaRosterAlternates(t *testing.T) {
	roster := &models.Roster{Personas: []models.Persona{
		{ID: models.PersonaJoey},
		{ID: models.PersonaChandler, Self: true},
	}}
	engine, err := NewConversationService(fixedTopic("x"), NewResponseService(nil, roster), roster, 6, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	conv := engine.Run(context.Background(), RunOptions{})
	require.Len(t, conv.Transcript, 7)
	assertNoRepeats(t, conv.Transcript)
	assert.WithinDuration(t, time.Now(), conv.GeneratedAt, time.Minute)
}
