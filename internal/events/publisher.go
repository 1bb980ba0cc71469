// Package events publishes attendance events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// EventTypeRecorded is the type of the event published for a new attendance record.
const EventTypeRecorded = "attendance.recorded"

// Event is the JSON payload published for each new attendance record.
type Event struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Identity  string    `json:"employee_id"`
	Timestamp time.Time `json:"timestamp"`
	Period    string    `json:"period"`
	Distance  float64   `json:"distance"`
}

// Recorder receives publishing measurements. *metrics.EventMetrics implements it.
type Recorder interface {
	ObservePublished(latencySeconds float64)
	IncrementDropped()
	IncrementErrors()
}

// Publisher queues attendance events and publishes them from a single worker,
// so recognition requests never wait on the broker.
type Publisher struct {
	client   Client
	topic    string
	logger   *slog.Logger
	recorder Recorder

	queue     chan Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ recognition.Notifier = (*Publisher)(nil)

// NewPublisher creates a publisher for topic. recorder and logger may be nil.
func NewPublisher(client Client, topic string, recorder Recorder, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		topic:    topic,
		logger:   logger,
		recorder: recorder,
		queue:    make(chan Event, constants.EventChannelBuffer),
		done:     make(chan struct{}),
	}
}

// Start connects the client and starts the worker. A failed initial connection is logged;
// events queued meanwhile are published once the client reconnects or dropped on error.
func (p *Publisher) Start(ctx context.Context) {
	if err := p.client.Connect(ctx); err != nil {
		p.logger.Warn("event broker unavailable", "error", err)
	}
	p.wg.Add(1)
	go p.run()
}

// Notify queues an event for a newly recorded attendance. It never blocks; a full queue drops the event.
func (p *Publisher) Notify(_ context.Context, res recognition.Result) {
	if res.Outcome != recognition.OutcomeRecorded {
		return
	}
	ev := Event{
		Type:      EventTypeRecorded,
		ID:        res.Record.ID,
		Identity:  res.Identity,
		Timestamp: res.Record.Timestamp,
		Period:    res.Record.PeriodKey,
		Distance:  res.Distance,
	}

	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("event queue full, dropping attendance event", "identity", ev.Identity)
		if p.recorder != nil {
			p.recorder.IncrementDropped()
		}
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case ev := <-p.queue:
			p.publish(ev)
		case <-p.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case ev := <-p.queue:
					p.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("encoding attendance event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	start := time.Now()
	if err := p.client.Publish(ctx, p.topic, payload); err != nil {
		p.logger.Warn("publishing attendance event failed", "identity", ev.Identity, "error", err)
		if p.recorder != nil {
			p.recorder.IncrementErrors()
		}
		return
	}
	if p.recorder != nil {
		p.recorder.ObservePublished(time.Since(start).Seconds())
	}
}

// Close stops accepting events, publishes the queued ones and disconnects.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		p.client.Disconnect()
	})
}
