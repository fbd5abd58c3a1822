package workers

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// ExtractionTask is one post-reply memory extraction job.
type ExtractionTask struct {
	UserID  string
	Message string
	Reply   string
}

// Extractor is the slice of the memory service the pool needs.
type Extractor interface {
	ExtractAndStore(ctx context.Context, userID, message, reply string) error
}

// ExtractionPool runs memory extraction off the reply path. Enqueue never
// blocks the caller; a full queue drops the task. Accepted tasks run to
// completion even if the originating connection is gone — extraction
// outliving its connection is a deliberate policy, not a leak.
type ExtractionPool struct {
	Memory     Extractor
	NumWorkers int
	QueueSize  int
	Logger     *logrus.Logger

	tasks chan ExtractionTask
}

func (p *ExtractionPool) Start(ctx context.Context) error {
	if p.Memory == nil {
		return errors.New("ExtractionPool missing dependency: Memory must be set")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 64
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	p.tasks = make(chan ExtractionTask, p.QueueSize)
	for i := 0; i < p.NumWorkers; i++ {
		go p.runWorker(ctx)
	}
	return nil
}

// Enqueue schedules a task; returns false when the queue is full and the
// task was dropped.
func (p *ExtractionPool) Enqueue(t ExtractionTask) bool {
	select {
	case p.tasks <- t:
		return true
	default:
		p.Logger.WithField("user_id", t.UserID).Warn("extraction queue full, task dropped")
		return false
	}
}

func (p *ExtractionPool) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			if err := p.Memory.ExtractAndStore(ctx, t.UserID, t.Message, t.Reply); err != nil {
				p.Logger.WithField("user_id", t.UserID).WithError(err).Warn("memory extraction failed")
			}
		}
	}
}
