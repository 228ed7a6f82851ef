package session

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

const (
	defaultLaneCount    = 4
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	laneBuffer          = 64
	deleteTimeout       = 5 * time.Second
)

type workerConfig struct {
	lanes            int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithLaneCount sets the number of parallel processing lanes.
func WithLaneCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.lanes = count
		}
	}
}

// WithReceiveWaitSeconds sets the queue long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

type laneJob struct {
	payload queuePayload
	receipt string
}

// Worker consumes intake jobs and feeds them to the manager. A single
// receiver goroutine fans jobs out to lanes by session id, so messages within
// one session process in arrival order while sessions run in parallel.
type Worker struct {
	manager *Manager
	queue   queueClient
	logger  *logging.Logger

	cfg   workerConfig
	lanes []chan laneJob
	wg    sync.WaitGroup
}

// NewWorker constructs a queue consumer around the session manager.
func NewWorker(manager *Manager, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if manager == nil {
		panic("session: manager cannot be nil")
	}
	if queue == nil {
		panic("session: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		lanes:            defaultLaneCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	lanes := make([]chan laneJob, cfg.lanes)
	for i := range lanes {
		lanes[i] = make(chan laneJob, laneBuffer)
	}

	return &Worker{
		manager: manager,
		queue:   queue,
		logger:  logger,
		cfg:     cfg,
		lanes:   lanes,
	}
}

// Start launches the receiver and lane goroutines until ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	for i, lane := range w.lanes {
		w.wg.Add(1)
		go w.runLane(ctx, i+1, lane)
	}
	w.wg.Add(1)
	go w.receive(ctx)
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) receive(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		for _, lane := range w.lanes {
			close(lane)
		}
	}()
	w.logger.Debug("intake receiver started", "lanes", w.cfg.lanes)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("intake receiver stopping")
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive intake jobs", "error", err)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.dispatch(ctx, msg)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode intake job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	lane := w.lanes[laneIndex(payload.orderingKey(), len(w.lanes))]
	select {
	case lane <- laneJob{payload: payload, receipt: msg.ReceiptHandle}:
	case <-ctx.Done():
	}
}

func laneIndex(key string, lanes int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(lanes))
}

func (w *Worker) runLane(ctx context.Context, laneID int, jobs <-chan laneJob) {
	defer w.wg.Done()
	w.logger.Debug("intake lane started", "lane", laneID)

	for job := range jobs {
		w.handle(ctx, job.payload)
		w.deleteMessage(job.receipt)
	}
}

func (w *Worker) handle(ctx context.Context, payload queuePayload) {
	switch payload.Kind {
	case jobTypeMessage:
		if payload.Message == nil {
			w.logger.Error("message job missing body", "job_id", payload.ID)
			return
		}
		_, err := w.manager.ProcessMessage(ctx, payload.Message.SessionID, payload.Message.SenderID, payload.Message.Text)
		if err != nil {
			w.logger.Error("process message job failed",
				"job_id", payload.ID,
				"session_id", payload.Message.SessionID,
				"error", err)
		}
	case jobTypeEnd:
		if payload.End == nil {
			w.logger.Error("end job missing body", "job_id", payload.ID)
			return
		}
		_, err := w.manager.EndSession(ctx, payload.End.SessionID, payload.End.CallerID)
		if err != nil {
			w.logger.Error("end session job failed",
				"job_id", payload.ID,
				"session_id", payload.End.SessionID,
				"error", err)
		}
	case jobTypeCreate:
		if payload.Create == nil {
			w.logger.Error("create job missing body", "job_id", payload.ID)
			return
		}
		_, err := w.manager.CreateSession(ctx, *payload.Create)
		if err != nil {
			w.logger.Error("create session job failed",
				"job_id", payload.ID,
				"error", err)
		}
	default:
		w.logger.Error("unknown intake job kind",
			"job_id", payload.ID,
			"kind", string(payload.Kind))
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete intake job", "error", err)
	}
}
