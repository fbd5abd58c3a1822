package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mgagent/companion/internal/agent"
	"github.com/mgagent/companion/internal/models"
	"github.com/mgagent/companion/internal/providers/llm"
	"github.com/mgagent/companion/internal/utils"
)

// GenericErrorText is the only failure wording clients ever see; internals
// never leak onto the socket.
const GenericErrorText = "The service is unavailable right now, please try again later."

// extractionFloor is the minimum number of prior history rows before a turn
// is worth extracting memory from.
const extractionFloor = 3

// EventSink delivers stream events for a user; backed by the connection
// registry in production.
type EventSink interface {
	Send(userID string, payload []byte) error
}

// ExtractionScheduler enqueues post-reply memory extraction without blocking.
type ExtractionScheduler interface {
	Enqueue(t ChatExtraction) bool
}

// ChatExtraction mirrors the worker task; declared here so the service does
// not depend on the worker package.
type ChatExtraction struct {
	UserID  string
	Message string
	Reply   string
}

// ChatService drives one conversational turn end to end: history, memory,
// streaming (with at most one tool round-trip), persistence, extraction
// scheduling.
type ChatService interface {
	// HandleMessage processes one inbound message and emits the full event
	// envelope for it. A non-nil return means the turn failed mid-stream
	// and the connection should be torn down; recoverable failures emit an
	// error event and return nil so the next message can be attempted.
	HandleMessage(ctx context.Context, userID string, msg models.InboundMessage) error
}

type chatService struct {
	records   ChatRecordService
	agent     *agent.Agent
	visionLLM llm.Client
	sink      EventSink
	extractor ExtractionScheduler
	log       *logrus.Logger
}

func NewChatService(records ChatRecordService, ag *agent.Agent, visionLLM llm.Client, sink EventSink, extractor ExtractionScheduler, log *logrus.Logger) ChatService {
	return &chatService{
		records:   records,
		agent:     ag,
		visionLLM: visionLLM,
		sink:      sink,
		extractor: extractor,
		log:       log,
	}
}

func (s *chatService) HandleMessage(ctx context.Context, userID string, msg models.InboundMessage) error {
	const op = "ChatService.HandleMessage"

	history, historyRows, err := s.records.RecentHistory(ctx, userID)
	if err != nil {
		s.log.WithField("user_id", userID).WithError(err).Error("history load failed")
		s.emitError(userID, msg.UUID)
		return nil
	}

	// persist the question before streaming so a crash mid-stream still
	// leaves a record of what was asked
	start := time.Now().UTC()
	userRec := &models.ChatRecord{
		UserID:            userID,
		UUID:              msg.UUID,
		Role:              models.RoleUser,
		Text:              msg.Text,
		Image:             msg.Image,
		Video:             msg.Video,
		ResponseStartTime: &start,
	}
	if err := s.records.SaveTurn(ctx, userRec); err != nil {
		s.log.WithField("user_id", userID).WithError(err).Error("user turn persist failed")
		s.emitError(userID, msg.UUID)
		return nil
	}

	chunks, errs := s.openStream(ctx, userID, msg, history)

	var (
		fullText     string
		modelUsed    string
		sentStart    bool
		sentTerminal bool
	)
	for chunk := range chunks {
		if chunk.Model != "" {
			modelUsed = chunk.Model
		}
		fullText += chunk.Content

		if !sentStart {
			if err := s.emit(userID, models.StreamMessage{UUID: msg.UUID, Status: models.StatusStart}); err != nil {
				return utils.E(utils.CodeUnavailable, op, "client write failed", err)
			}
			sentStart = true
		}

		status := models.StatusStreaming
		if chunk.Done() {
			status = models.StatusDone
			sentTerminal = true
		}
		ev := models.StreamMessage{UUID: msg.UUID, Content: chunk.Content, Status: status}
		if err := s.emit(userID, ev); err != nil {
			return utils.E(utils.CodeUnavailable, op, "client write failed", err)
		}
	}
	if err := <-errs; err != nil {
		s.log.WithField("user_id", userID).WithError(err).Error("stream failed")
		s.emitError(userID, msg.UUID)
		return utils.E(utils.CodeUpstream, op, "completion stream failed", err)
	}
	if !sentStart {
		// zero-chunk success: the client still gets a full envelope instead
		// of waiting forever on the correlation token
		if err := s.emit(userID, models.StreamMessage{UUID: msg.UUID, Status: models.StatusStart}); err != nil {
			return utils.E(utils.CodeUnavailable, op, "client write failed", err)
		}
	}
	if !sentTerminal {
		// upstream closed without a finish signal; close the envelope
		if err := s.emit(userID, models.StreamMessage{UUID: msg.UUID, Status: models.StatusDone}); err != nil {
			return utils.E(utils.CodeUnavailable, op, "client write failed", err)
		}
	}

	end := time.Now().UTC()
	assistantRec := &models.ChatRecord{
		UserID:            userID,
		UUID:              msg.UUID,
		Role:              models.RoleAssistant,
		Model:             modelUsed,
		Text:              fullText,
		Image:             msg.Image,
		Video:             msg.Video,
		ResponseStartTime: &start,
		ResponseEndTime:   &end,
	}
	if err := s.records.SaveTurn(ctx, assistantRec); err != nil {
		// the reply already reached the client with a done event; keep the
		// envelope intact and only log
		s.log.WithField("user_id", userID).WithError(err).Error("assistant turn persist failed")
		return nil
	}

	if s.extractor != nil && historyRows >= extractionFloor {
		s.extractor.Enqueue(ChatExtraction{UserID: userID, Message: msg.Text, Reply: fullText})
	}
	return nil
}

// openStream picks the completion path: image-bearing messages go straight to
// the vision model with no tools, text goes through the agent.
func (s *chatService) openStream(ctx context.Context, userID string, msg models.InboundMessage, history []llm.Message) (<-chan llm.Chunk, <-chan error) {
	if len(msg.Image) > 0 && s.visionLLM != nil {
		system := llm.Message{Role: llm.RoleSystem, Content: "You are a helpful assistant."}
		user := llm.Message{Role: llm.RoleUser, Content: msg.Text, Images: msg.Image}
		return s.visionLLM.Stream(ctx, system, user, history)
	}
	return s.agent.Run(ctx, userID, msg.Text, history)
}

func (s *chatService) emit(userID string, ev models.StreamMessage) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.sink.Send(userID, b)
}

func (s *chatService) emitError(userID, correlationID string) {
	_ = s.emit(userID, models.StreamMessage{
		UUID:    correlationID,
		Content: GenericErrorText,
		Status:  models.StatusError,
	})
}
