// Package hub multiplexes upstream price streams. It keeps at most one
// upstream subscription per (instrument, resolution) and fans every tick out
// to the consumers registered for that key.
package hub

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/broker"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/metrics"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"go.uber.org/zap"
)

// Key identifies one upstream stream.
type Key struct {
	Instrument string
	Resolution types.Resolution
}

func compareKeys(a, b Key) int {
	return cmp.Or(
		strings.Compare(a.Instrument, b.Instrument),
		strings.Compare(string(a.Resolution), string(b.Resolution)),
	)
}

func (k Key) fields() []zap.Field {
	return []zap.Field{zap.String("instrument", k.Instrument), zap.String("resolution", string(k.Resolution))}
}

// Callback receives ticks for a key. Calls to one callback never overlap
// and arrive in tick order, the replayed last tick first.
type Callback func(types.Candle)

type consumer struct {
	id string
	cb Callback
	// delivery is held while the consumer receives a tick.
	delivery *sync.Mutex
}

func newConsumer(id string, cb Callback) consumer {
	return consumer{id: id, cb: cb, delivery: &sync.Mutex{}}
}

func (c consumer) deliver(candle types.Candle) {
	c.delivery.Lock()
	defer c.delivery.Unlock()

	c.cb(candle)
}

type subscription struct {
	key       Key
	consumers []consumer
	// fanout serializes deliveries of this subscription.
	fanout sync.Mutex
	// placeholder subscriptions never open an upstream stream.
	placeholder bool
	stop        func()
	// streamGen identifies the live upstream stream. Ticks from older streams are ignored.
	streamGen   uint64
	last        optional.Option[types.Candle]
	teardown    *time.Timer
	teardownGen uint64
}

// SubscriptionInfo is a read-only view of one subscription.
type SubscriptionInfo struct {
	Instrument  string           `json:"instrument"`
	Resolution  types.Resolution `json:"resolution"`
	Consumers   []string         `json:"consumers"`
	Placeholder bool             `json:"placeholder"`
	LastTick    *types.Candle    `json:"last_tick,omitempty"`
}

// Config tunes the hub.
type Config struct {
	// Grace delays the upstream close after the last consumer leaves. Zero closes immediately.
	Grace time.Duration `yaml:"grace" json:"grace" jsonschema:"title=Grace,description=Delay before an idle upstream stream is closed,type=string,default=3s"`
}

// Hub is the subscription multiplexer.
type Hub struct {
	streamer broker.Streamer
	resolver broker.InstrumentResolver
	log      *logger.Logger
	metrics  *metrics.Metrics
	grace    time.Duration

	// openMu serializes lifecycle changes: open, close, resubscribe.
	openMu sync.Mutex
	// mu guards the tables below and is the only lock taken on the tick path.
	mu           sync.Mutex
	subs         map[Key]*subscription
	unresolvable map[string]struct{}
	closed       bool
}

// New creates a hub on top of a streamer and an instrument resolver.
func New(config Config, streamer broker.Streamer, resolver broker.InstrumentResolver, m *metrics.Metrics, log *logger.Logger) *Hub {
	return &Hub{
		streamer:     streamer,
		resolver:     resolver,
		log:          log.Named("hub"),
		metrics:      m,
		grace:        config.Grace,
		openMu:       sync.Mutex{},
		mu:           sync.Mutex{},
		subs:         make(map[Key]*subscription),
		unresolvable: make(map[string]struct{}),
		closed:       false,
	}
}

// Subscribe registers cb for key under consumerID. The first consumer of a
// key opens the upstream stream. A joining consumer receives the cached last
// tick synchronously before Subscribe returns.
func (h *Hub) Subscribe(ctx context.Context, key Key, consumerID string, cb Callback) error {
	joined, replay, err := h.subscribe(ctx, key, consumerID, cb)
	if err != nil {
		return err
	}

	// joined.delivery was locked before the consumer became visible, so no
	// live tick reaches it ahead of the replay.
	if replay.IsSome() {
		joined.cb(replay.Unwrap())
		joined.delivery.Unlock()
	}

	return nil
}

func (h *Hub) subscribe(ctx context.Context, key Key, consumerID string, cb Callback) (consumer, optional.Option[types.Candle], error) {
	none := optional.None[types.Candle]()
	joined := newConsumer(consumerID, cb)

	h.openMu.Lock()
	defer h.openMu.Unlock()

	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()

		return joined, none, errors.New(errors.ErrCodeHubClosed, "hub is closed")
	}

	if sub, ok := h.subs[key]; ok {
		defer h.mu.Unlock()

		if slices.ContainsFunc(sub.consumers, func(c consumer) bool { return c.id == consumerID }) {
			h.log.Debug("consumer already subscribed", append(key.fields(), zap.String("consumer_id", consumerID))...)

			return joined, none, nil
		}

		if sub.last.IsSome() {
			joined.delivery.Lock()
		}

		h.cancelTeardownLocked(sub)
		sub.consumers = append(sub.consumers, joined)
		h.metrics.ConsumerAdded()

		return joined, sub.last, nil
	}

	_, bad := h.unresolvable[key.Instrument]
	h.mu.Unlock()

	if !bad {
		meta, err := h.resolver.ResolveInstrument(ctx, key.Instrument)

		switch {
		case err != nil && errors.HasCodeInChain(err, errors.ErrCodeInstrumentNotFound):
			bad = true
		case err != nil:
			return joined, none, err
		case !meta.Tradable():
			bad = true
		}
	}

	sub := &subscription{
		key:         key,
		consumers:   []consumer{joined},
		fanout:      sync.Mutex{},
		placeholder: bad,
		stop:        nil,
		streamGen:   0,
		last:        none,
		teardown:    nil,
		teardownGen: 0,
	}

	h.mu.Lock()
	if bad {
		h.unresolvable[key.Instrument] = struct{}{}
	}

	h.subs[key] = sub
	h.mu.Unlock()

	h.metrics.ConsumerAdded()

	if bad {
		h.log.Warn("instrument cannot be resolved, registering no-op subscription",
			append(key.fields(), zap.String("consumer_id", consumerID))...)

		return joined, none, nil
	}

	if err := h.openStream(ctx, sub); err != nil {
		h.mu.Lock()
		delete(h.subs, key)
		h.mu.Unlock()

		h.metrics.ConsumerRemoved()

		return joined, none, err
	}

	return joined, none, nil
}

// openStream opens the upstream stream for sub. Callers hold openMu.
func (h *Hub) openStream(ctx context.Context, sub *subscription) error {
	h.mu.Lock()
	sub.streamGen++
	gen := sub.streamGen
	h.mu.Unlock()

	stop, err := h.streamer.StreamPrice(context.WithoutCancel(ctx), sub.key.Instrument, sub.key.Resolution, func(c types.Candle) {
		h.dispatch(sub, gen, c)
	})
	if err != nil {
		h.metrics.StreamOpenFailed()
		h.log.Error("failed to open upstream stream", append(sub.key.fields(), zap.Error(err))...)

		return errors.Wrap(errors.ErrCodeStreamOpenFailed, "failed to open upstream stream", err)
	}

	h.mu.Lock()
	sub.stop = stop
	h.mu.Unlock()

	h.metrics.StreamOpened()
	h.log.Info("upstream stream opened", sub.key.fields()...)

	return nil
}

// closeStream stops the upstream stream of sub if one is open. Callers hold openMu.
func (h *Hub) closeStream(sub *subscription) {
	h.mu.Lock()
	stop := sub.stop
	sub.stop = nil
	sub.streamGen++
	h.mu.Unlock()

	if stop == nil {
		return
	}

	stop()
	h.metrics.StreamClosed()
	h.log.Info("upstream stream closed", sub.key.fields()...)
}

func (h *Hub) dispatch(sub *subscription, gen uint64, candle types.Candle) {
	sub.fanout.Lock()
	defer sub.fanout.Unlock()

	h.mu.Lock()

	if h.subs[sub.key] != sub || sub.streamGen != gen {
		h.mu.Unlock()

		return
	}

	sub.last = optional.Some(candle)
	consumers := slices.Clone(sub.consumers)
	h.mu.Unlock()

	h.metrics.Tick(string(sub.key.Resolution))

	for _, c := range consumers {
		c.deliver(candle)
	}
}

// Unsubscribe removes consumerID from key. When the last consumer leaves,
// the upstream closes after the grace delay unless a consumer rejoins first.
func (h *Hub) Unsubscribe(key Key, consumerID string) {
	h.openMu.Lock()
	defer h.openMu.Unlock()

	h.mu.Lock()

	sub, ok := h.subs[key]
	if !ok {
		h.mu.Unlock()

		return
	}

	idx := slices.IndexFunc(sub.consumers, func(c consumer) bool { return c.id == consumerID })
	if idx < 0 {
		h.mu.Unlock()

		return
	}

	sub.consumers = slices.Delete(sub.consumers, idx, idx+1)
	h.metrics.ConsumerRemoved()

	if len(sub.consumers) > 0 {
		h.mu.Unlock()

		return
	}

	if h.grace > 0 {
		sub.teardownGen++
		gen := sub.teardownGen
		sub.teardown = time.AfterFunc(h.grace, func() { h.teardown(sub, gen) })
		h.mu.Unlock()

		return
	}

	delete(h.subs, key)
	h.mu.Unlock()

	h.closeStream(sub)
}

func (h *Hub) teardown(sub *subscription, gen uint64) {
	h.openMu.Lock()
	defer h.openMu.Unlock()

	h.mu.Lock()

	if h.subs[sub.key] != sub || sub.teardownGen != gen || len(sub.consumers) > 0 {
		h.mu.Unlock()

		return
	}

	delete(h.subs, sub.key)
	sub.teardown = nil
	h.mu.Unlock()

	h.closeStream(sub)
}

func (h *Hub) cancelTeardownLocked(sub *subscription) {
	if sub.teardown == nil {
		return
	}

	sub.teardown.Stop()
	sub.teardown = nil
	sub.teardownGen++
}

// IsSubscribed reports whether consumerID is registered for key.
func (h *Hub) IsSubscribed(key Key, consumerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[key]
	if !ok {
		return false
	}

	return slices.ContainsFunc(sub.consumers, func(c consumer) bool { return c.id == consumerID })
}

// ResubscribeAll cycles every upstream stream sequentially: each one is
// closed and reopened with its consumers kept. It returns how many streams
// were reopened.
func (h *Hub) ResubscribeAll(ctx context.Context) int {
	h.openMu.Lock()
	defer h.openMu.Unlock()

	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))

	for _, sub := range h.subs {
		if !sub.placeholder {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	slices.SortFunc(subs, func(a, b *subscription) int {
		return compareKeys(a.key, b.key)
	})

	count := 0

	for _, sub := range subs {
		h.closeStream(sub)

		if err := h.openStream(ctx, sub); err != nil {
			continue
		}

		count++
	}

	h.metrics.Resubscribed(count)
	h.log.Info("resubscribed upstream streams", zap.Int("count", count), zap.Int("total", len(subs)))

	return count
}

// Snapshot returns the current subscriptions.
func (h *Hub) Snapshot() []SubscriptionInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]SubscriptionInfo, 0, len(h.subs))

	for key, sub := range h.subs {
		ids := make([]string, 0, len(sub.consumers))
		for _, c := range sub.consumers {
			ids = append(ids, c.id)
		}

		info := SubscriptionInfo{
			Instrument:  key.Instrument,
			Resolution:  key.Resolution,
			Consumers:   ids,
			Placeholder: sub.placeholder,
			LastTick:    nil,
		}

		if sub.last.IsSome() {
			last := sub.last.Unwrap()
			info.LastTick = &last
		}

		out = append(out, info)
	}

	slices.SortFunc(out, func(a, b SubscriptionInfo) int {
		return compareKeys(
			Key{Instrument: a.Instrument, Resolution: a.Resolution},
			Key{Instrument: b.Instrument, Resolution: b.Resolution},
		)
	})

	return out
}

// Close stops every upstream stream and rejects further subscriptions.
func (h *Hub) Close() {
	h.openMu.Lock()
	defer h.openMu.Unlock()

	h.mu.Lock()
	h.closed = true
	subs := make([]*subscription, 0, len(h.subs))

	for key, sub := range h.subs {
		h.cancelTeardownLocked(sub)
		subs = append(subs, sub)
		delete(h.subs, key)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.closeStream(sub)
	}
}
