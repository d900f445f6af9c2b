package outbound

import (
	"context"
	"sync"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/oleiade/lane.v1"
)

const (
	DefaultMinInterval = 250 * time.Millisecond
	DefaultMaxPending  = 10000
)

type item struct {
	channelID string
	data      *discordgo.MessageSend
	queuedAt  time.Time
}

// Queue delivers log messages one at a time in FIFO order with a minimum
// interval between two sends. Producers never block, failed sends are dropped.
type Queue struct {
	// mu makes the size check and the enqueue one step
	mu         sync.Mutex
	sender     platform.Sender
	items      *lane.Queue
	wake       chan struct{}
	limiter    *rate.Limiter
	maxPending int
}

func NewQueue(sender platform.Sender, minInterval time.Duration, maxPending int) *Queue {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Queue{
		sender:     sender,
		items:      lane.NewQueue(),
		wake:       make(chan struct{}, 1),
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		maxPending: maxPending,
	}
}

func logger() *logrus.Entry {
	return cache.GetLogger().WithField("module", "outbound")
}

// Enqueue adds a message for $channelID, it returns false if the queue is full
func (q *Queue) Enqueue(channelID string, data *discordgo.MessageSend) bool {
	if channelID == "" || data == nil {
		return false
	}
	q.mu.Lock()
	if q.items.Size() >= q.maxPending {
		q.mu.Unlock()
		metrics.OutboundDropped.Inc()
		logger().WithField("ChannelID", channelID).Warnf("queue full (%d items), dropping message", q.maxPending)
		return false
	}
	q.items.Enqueue(&item{channelID: channelID, data: data, queuedAt: time.Now()})
	size := q.items.Size()
	q.mu.Unlock()
	metrics.OutboundQueueLength.Set(float64(size))

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) Len() int {
	return q.items.Size()
}

// Start launches the delivery loop, it stops when $ctx is done
func (q *Queue) Start(ctx context.Context) {
	go q.loop(ctx)
	logger().Info("started outbound delivery loop")
}

func (q *Queue) loop(ctx context.Context) {
	defer helpers.Recover()
	defer func() {
		if ctx.Err() != nil {
			return
		}
		go func() {
			logger().Error("The outbound delivery loop died. Please investigate! Will be restarted in 60 seconds")
			select {
			case <-ctx.Done():
			case <-time.After(60 * time.Second):
				q.loop(ctx)
			}
		}()
	}()

	for {
		q.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
	}
}

func (q *Queue) drain(ctx context.Context) {
	for {
		next := q.items.Dequeue()
		if next == nil {
			return
		}
		metrics.OutboundQueueLength.Set(float64(q.items.Size()))

		if err := q.limiter.Wait(ctx); err != nil {
			return
		}
		q.send(next.(*item))
	}
}

func (q *Queue) send(it *item) {
	err := q.sender.SendMessage(it.channelID, it.data)
	if err != nil {
		metrics.OutboundFailed.Inc()
		logger().WithField("ChannelID", it.channelID).Warnf("dropping log message queued %s ago: %s",
			time.Since(it.queuedAt).String(), err.Error())
		return
	}
	metrics.OutboundSent.Inc()
}
