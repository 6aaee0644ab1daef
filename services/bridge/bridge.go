// bridge/bridge.go
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sensornode-go/bus"
	"sensornode-go/services/metrics"
	"sensornode-go/types"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Topics on the local bus.
var (
	PublishFilter = bus.T("publish", bus.MultiLevel)
	StateTopic    = bus.T("bridge", "state")
	// RootFilter receives the node's root topic (a retained string).
	RootFilter = bus.T("node", "root_topic")
)

var errRetarget = errors.New("root topic changed")

// Link is one live broker session.
type Link interface {
	Publish(topic string, payload []byte) error
	// Lost delivers the cause once the session drops.
	Lost() <-chan error
	Close()
}

// Dialer opens broker sessions.
type Dialer interface {
	Dial(ctx context.Context) (Link, error)
	String() string
}

// Retargeter is a Dialer whose sessions are addressed under a root topic.
// When the root changes the bridge re-dials so the session moves with it.
type Retargeter interface {
	SetRootTopic(root string)
}

type Options struct {
	Dialer     Dialer
	Log        *slog.Logger
	Metrics    *metrics.Metrics
	MinBackoff time.Duration // default 250ms
	MaxBackoff time.Duration // default 5s
}

// Start forwards readings published on the local bus to the broker. It blocks
// until ctx is cancelled. While the broker is unreachable it retries with a
// doubling delay; readings that arrive meanwhile queue on the subscription,
// oldest dropped first.
func Start(ctx context.Context, conn *bus.Connection, o Options) {
	s := &Service{
		conn: conn,
		dial: o.Dialer,
		log:  o.Log,
		m:    o.Metrics,
		min:  o.MinBackoff,
		max:  o.MaxBackoff,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.min <= 0 {
		s.min = 250 * time.Millisecond
	}
	if s.max <= 0 {
		s.max = 5 * time.Second
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn *bus.Connection
	dial Dialer
	log  *slog.Logger
	m    *metrics.Metrics
	min  time.Duration
	max  time.Duration

	root    string
	rootSub *bus.Subscription
}

func (s *Service) run(ctx context.Context) {
	sub := s.conn.Subscribe(PublishFilter)
	defer s.conn.Unsubscribe(sub)
	s.rootSub = s.conn.Subscribe(RootFilter)
	defer s.conn.Unsubscribe(s.rootSub)

	s.publishState("idle", "connecting", nil)
	for {
		link, ok := s.connect(ctx)
		if !ok {
			return
		}
		err := s.forward(ctx, link, sub)
		link.Close()
		s.m.RecordBridgeStatus(false)
		if err == nil {
			s.publishState("idle", "stopped", nil)
			return
		}
		if errors.Is(err, errRetarget) {
			s.log.Info("broker session moving", "root", s.root)
			s.publishState("degraded", "retargeting", nil)
			continue
		}
		s.log.Warn("broker connection lost", "broker", s.dial.String(), "err", err)
		s.publishState("degraded", "link_lost_retrying", err)
	}
}

// connect dials until it succeeds or ctx ends.
func (s *Service) connect(ctx context.Context) (Link, bool) {
	backoff := backoffSeq(s.min, s.max)
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return nil, false
		}
		s.drainRoot()
		link, err := s.dial.Dial(ctx)
		if err == nil {
			s.log.Info("broker connected", "broker", s.dial.String(), "attempt", attempt)
			s.publishState("up", "link_established", nil)
			s.m.RecordBridgeStatus(true)
			return link, true
		}
		delay := backoff()
		s.log.Warn("broker connect failed", "broker", s.dial.String(), "attempt", attempt, "retry_in", delay, "err", err)
		s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return nil, false
		}
	}
}

// forward owns the active link. It returns nil on ctx cancellation and the
// cause when the link fails.
func (s *Service) forward(ctx context.Context, link Link, sub *bus.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-s.rootSub.Channel():
			if ok && s.applyRoot(msg) {
				return errRetarget
			}
		case err := <-link.Lost():
			if err == nil {
				err = fmt.Errorf("session closed")
			}
			return err
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			r, ok := msg.Payload.(types.Reading)
			if !ok || r.Topic == "" {
				continue
			}
			if err := link.Publish(r.Topic, []byte(r.Line)); err != nil {
				return err
			}
			s.log.Debug("reading forwarded", "topic", r.Topic, "sensor", r.SensorID)
		}
	}
}

// drainRoot applies any root topic announcements queued while not linked.
func (s *Service) drainRoot() {
	for {
		select {
		case msg, ok := <-s.rootSub.Channel():
			if !ok {
				return
			}
			s.applyRoot(msg)
		default:
			return
		}
	}
}

// applyRoot reports whether msg moved an already known root topic. The
// first announcement only records it.
func (s *Service) applyRoot(msg *bus.Message) bool {
	root, ok := msg.Payload.(string)
	if !ok || root == "" || root == s.root {
		return false
	}
	prev := s.root
	s.root = root
	r, ok := s.dial.(Retargeter)
	if !ok {
		return false
	}
	r.SetRootTopic(root)
	return prev != ""
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "idle"
		"status": status, // short machine string
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(StateTopic, payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
