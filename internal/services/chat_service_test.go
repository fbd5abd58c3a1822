package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgagent/companion/internal/agent"
	"github.com/mgagent/companion/internal/models"
	"github.com/mgagent/companion/internal/providers/llm"
)

type scriptedLLM struct {
	chunks []llm.Chunk
	err    error

	streamCalls    int
	withToolsCalls int
}

func (f *scriptedLLM) Model() string { return "scripted" }

func (f *scriptedLLM) Complete(ctx context.Context, system, user llm.Message, history []llm.Message) (string, error) {
	return "", errors.New("not used")
}

func (f *scriptedLLM) Stream(ctx context.Context, system, user llm.Message, history []llm.Message) (<-chan llm.Chunk, <-chan error) {
	f.streamCalls++
	return f.play()
}

func (f *scriptedLLM) StreamWithTools(ctx context.Context, system, user llm.Message, history []llm.Message, tools []llm.ToolSpec, toolChoice string) (<-chan llm.Chunk, <-chan error) {
	f.withToolsCalls++
	return f.play()
}

func (f *scriptedLLM) play() (<-chan llm.Chunk, <-chan error) {
	out := make(chan llm.Chunk, len(f.chunks))
	errs := make(chan error, 1)
	for _, c := range f.chunks {
		out <- c
	}
	if f.err != nil {
		errs <- f.err
	}
	close(out)
	close(errs)
	return out, errs
}

type noMemory struct{}

func (noMemory) SearchUserMemory(ctx context.Context, userID, query string, topK int) ([]agent.MemoryHit, error) {
	return nil, nil
}

type fakeRecords struct {
	history     []llm.Message
	historyRows int
	historyErr  error
	saveErr     error
	saved       []*models.ChatRecord
}

func (f *fakeRecords) SaveTurn(ctx context.Context, rec *models.ChatRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeRecords) RecentHistory(ctx context.Context, userID string) ([]llm.Message, int, error) {
	return f.history, f.historyRows, f.historyErr
}

func (f *fakeRecords) RecentRecords(ctx context.Context, userID string, limit int) ([]models.ChatRecord, error) {
	return nil, nil
}

type captureSink struct {
	events  []models.StreamMessage
	failAll bool
}

func (s *captureSink) Send(userID string, payload []byte) error {
	if s.failAll {
		return errors.New("socket gone")
	}
	var ev models.StreamMessage
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	s.events = append(s.events, ev)
	return nil
}

type captureScheduler struct {
	tasks []ChatExtraction
}

func (s *captureScheduler) Enqueue(t ChatExtraction) bool {
	s.tasks = append(s.tasks, t)
	return true
}

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestChat(client llm.Client, records *fakeRecords, sink *captureSink, sched ExtractionScheduler) ChatService {
	log := quietLog()
	ag := agent.New(client, noMemory{}, agent.NewDispatcher(log), "Companion", log)
	return NewChatService(records, ag, nil, sink, sched, log)
}

func TestHandleMessageEventEnvelope(t *testing.T) {
	client := &scriptedLLM{chunks: []llm.Chunk{
		{Kind: llm.ChunkContent, Content: "Hi", Model: "scripted"},
		{Kind: llm.ChunkContent, Content: " there", Model: "scripted", FinishReason: "stop"},
	}}
	records := &fakeRecords{}
	sink := &captureSink{}
	chat := newTestChat(client, records, sink, &captureScheduler{})

	err := chat.HandleMessage(context.Background(), "u1", models.InboundMessage{UUID: "m1", Text: "hello"})
	require.NoError(t, err)

	require.Len(t, sink.events, 3)
	assert.Equal(t, models.StreamMessage{UUID: "m1", Content: "", Status: models.StatusStart}, sink.events[0])
	assert.Equal(t, models.StreamMessage{UUID: "m1", Content: "Hi", Status: models.StatusStreaming}, sink.events[1])
	assert.Equal(t, models.StreamMessage{UUID: "m1", Content: " there", Status: models.StatusDone}, sink.events[2])
}

func TestHandleMessagePersistsPairedTurns(t *testing.T) {
	client := &scriptedLLM{chunks: []llm.Chunk{
		{Kind: llm.ChunkContent, Content: "Hi", Model: "scripted"},
		{Kind: llm.ChunkContent, Content: " there", Model: "scripted", FinishReason: "stop"},
	}}
	records := &fakeRecords{}
	chat := newTestChat(client, records, &captureSink{}, &captureScheduler{})

	err := chat.HandleMessage(context.Background(), "u1", models.InboundMessage{UUID: "m1", Text: "hello"})
	require.NoError(t, err)

	require.Len(t, records.saved, 2)

	user, assistant := records.saved[0], records.saved[1]
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, "hello", user.Text)
	assert.NotNil(t, user.ResponseStartTime)
	assert.Nil(t, user.ResponseEndTime)

	assert.Equal(t, models.RoleAssistant, assistant.Role)
	assert.Equal(t, "Hi there", assistant.Text)
	assert.Equal(t, "scripted", assistant.Model)
	assert.NotNil(t, assistant.ResponseEndTime)

	// both rows share the correlation token
	assert.Equal(t, "m1", user.UUID)
	assert.Equal(t, "m1", assistant.UUID)
}

func TestHandleMessageClosesEnvelopeWithoutFinishSignal(t *testing.T) {
	client := &scriptedLLM{chunks: []llm.Chunk{
		{Kind: llm.ChunkContent, Content: "Hi"},
	}}
	sink := &captureSink{}
	chat := newTestChat(client, &fakeRecords{}, sink, &captureScheduler{})

	err := chat.HandleMessage(context.Background(), "u1", models.InboundMessage{UUID: "m1", Text: "hello"})
	require.NoError(t, err)

	require.Len(t, sink.events, 3)
	assert.Equal(t, models.StatusStart, sink.events[0].Status)
	assert.Equal(t, models.StatusStreaming, sink.events[1].Status)
	assert.Equal(t, models.StatusDone, sink.events[2].Status)
	assert.Equal(t, "", sink.events[2].Content)
}

func TestHandleMessageEmptyStreamStillClosesEnvelope(t *testing.T) {
	client := &scriptedLLM{} // stream closes with zero chunks and no error
	records := &fakeRecords{}
	sink := &captureSink{}
	chat := newTestChat(client, records, sink, &captureScheduler{})

	err := chat.HandleMessage(context.Background(), "u1", models.InboundMessage{UUID: "m1", Text: "hello"})
	require.NoError(t, err)

	require.Len(t, sink.events, 2)
	assert.Equal(t, models.StreamMessage{UUID: "m1", Status: models.StatusStart}, sink.events[0])
	assert.Equal(t, models.StreamMessage{UUID: "m1", Status: models.StatusDone}, sink.events[1])
}

func TestHandleMessageHistoryFailureKeepsConnection(t *testing.T) {
	client := &scriptedLLM{}
	records := &fakeRecords{historyErr: errors.New("db down")}
	sink := &captureSink{}
	chat := newTestChat(client, records, sink, &captureScheduler{})

	err := chat.HandleMessage(context.Background(), "u1", models.InboundMessage{UUID: "m1", Text: "hello"})
	require.NoError(t, err) // connection survives a persistence failure

	require.Len(t, sink.events, 1)
	assert.Equal(t, models.StatusError, sink.events[0].Status)
	assert.Equal(t, GenericErrorText, sink.events[0].Content)
	assert.Empty(t, records.saved)
	assert.Equal(t, 0, client.withToolsCalls)
}

func TestHandleMessageStreamFailureTearsDown(t *testing.T) {
	client := &scriptedLLM{err: errors.New("upstream 500")}
	records := &fakeRecords{}
	sink := &captureSink{}
	chat := newTestChat(client, records, sink, &captureScheduler{})

	err := chat.HandleMessage(context.Background(), "u1", models.InboundMessage{UUID: "m1", Text: "hello"})
	require.Error(t, err)

	// the question was persisted before streaming began
	require.Len(t, records.saved, 1)
	assert.Equal(t, models.RoleUser, records.saved[0].Role)

	require.NotEmpty(t, sink.events)
	last := sink.events[len(sink.events)-1]
	assert.Equal(t, models.StatusError, last.Status)
	assert.Equal(t, GenericErrorText, last.Content)
}

func TestHandleMessageSchedulesExtractionAboveFloor(t *testing.T) {
	client := &scriptedLLM{chunks: []llm.Chunk{
		{Kind: llm.ChunkContent, Content: "reply", FinishReason: "stop"},
	}}
	records := &fakeRecords{historyRows: 4}
	sched := &captureScheduler{}
	chat := newTestChat(client, records, &captureSink{}, sched)

	err := chat.HandleMessage(context.Background(), "u1", models.InboundMessage{UUID: "m1", Text: "hello"})
	require.NoError(t, err)

	require.Len(t, sched.tasks, 1)
	assert.Equal(t, ChatExtraction{UserID: "u1", Message: "hello", Reply: "reply"}, sched.tasks[0])
}

func TestHandleMessageSkipsExtractionBelowFloor(t *testing.T) {
	client := &scriptedLLM{chunks: []llm.Chunk{
		{Kind: llm.ChunkContent, Content: "reply", FinishReason: "stop"},
	}}
	records := &fakeRecords{historyRows: 2}
	sched := &captureScheduler{}
	chat := newTestChat(client, records, &captureSink{}, sched)

	err := chat.HandleMessage(context.Background(), "u1", models.InboundMessage{UUID: "m1", Text: "hello"})
	require.NoError(t, err)
	assert.Empty(t, sched.tasks)
}

func TestHandleMessageRoutesImagesToVisionModel(t *testing.T) {
	textClient := &scriptedLLM{}
	visionClient := &scriptedLLM{chunks: []llm.Chunk{
		{Kind: llm.ChunkContent, Content: "a cat", Model: "scripted-vl", FinishReason: "stop"},
	}}

	log := quietLog()
	ag := agent.New(textClient, noMemory{}, agent.NewDispatcher(log), "Companion", log)
	records := &fakeRecords{}
	sink := &captureSink{}
	chat := NewChatService(records, ag, visionClient, sink, &captureScheduler{}, log)

	msg := models.InboundMessage{UUID: "m1", Text: "what is this?", Image: []string{"https://x/cat.png"}}
	err := chat.HandleMessage(context.Background(), "u1", msg)
	require.NoError(t, err)

	assert.Equal(t, 0, textClient.withToolsCalls)
	assert.Equal(t, 1, visionClient.streamCalls)

	require.Len(t, records.saved, 2)
	assert.Equal(t, "scripted-vl", records.saved[1].Model)
	assert.Equal(t, []string{"https://x/cat.png"}, []string(records.saved[1].Image))
}
