// bridge/bridge_test.go
package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/types"
)

func TestBridge_ForwardsReadingsAndReconnects(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")

	stateSub := conn.Subscribe(StateTopic)
	defer conn.Unsubscribe(stateSub)

	d := &fakeDialer{failures: 2}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Start(ctx, conn, Options{Dialer: d, MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	}()

	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "idle", "connecting")
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "degraded", "dial_failed_retrying")
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "degraded", "dial_failed_retrying")
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "up", "link_established")

	link := d.current()
	conn.Publish(conn.NewMessage(bus.T("publish", "70T"), types.Reading{
		SensorID: "70T",
		Topic:    "home/kitchen",
		Line:     "temperature,location=kitchen,node=n,sensor=SHTC3 value=21.50",
	}, false))
	conn.Publish(conn.NewMessage(bus.T("publish", "junk"), "not a reading", false))

	got := link.next(t)
	if got.topic != "home/kitchen" || !strings.HasPrefix(got.payload, "temperature,") {
		t.Fatalf("unexpected publish %+v", got)
	}

	// Drop the session; the bridge must come back on its own.
	link.lost <- errors.New("eof")
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "degraded", "link_lost_retrying")
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "up", "link_established")
	if !link.isClosed() {
		t.Fatal("lost link was not closed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "idle", "stopped")
}

func TestBridge_PublishErrorReconnects(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")
	stateSub := conn.Subscribe(StateTopic)
	defer conn.Unsubscribe(stateSub)

	d := &fakeDialer{publishErr: errors.New("broken pipe")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn, Options{Dialer: d, MinBackoff: time.Millisecond})

	_ = nextStatePayload(t, stateSub, time.Second) // connecting
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "up", "link_established")

	conn.Publish(conn.NewMessage(bus.T("publish", "A0"), types.Reading{SensorID: "A0", Topic: "t/a"}, false))
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "degraded", "link_lost_retrying")
}

func TestBridge_RedialsWhenRootTopicChanges(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")
	node := b.NewConnection("node")
	stateSub := conn.Subscribe(StateTopic)
	defer conn.Unsubscribe(stateSub)

	node.Publish(node.NewMessage(RootFilter, "home", true))

	d := &fakeDialer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn, Options{Dialer: d, MinBackoff: time.Millisecond})

	_ = nextStatePayload(t, stateSub, time.Second) // connecting
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "up", "link_established")
	first := d.current()

	node.Publish(node.NewMessage(RootFilter, "home", true))
	node.Publish(node.NewMessage(RootFilter, "garden", true))
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "degraded", "retargeting")
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "up", "link_established")

	if !first.isClosed() {
		t.Fatal("old session was not closed")
	}
	if got := d.rootTopics(); len(got) != 2 || got[0] != "home" || got[1] != "garden" {
		t.Fatalf("roots = %v", got)
	}
	if n := d.dials(); n != 2 {
		t.Fatalf("dials = %d, want 2", n)
	}
}

func TestBackoffSeq(t *testing.T) {
	next := backoffSeq(250*time.Millisecond, 5*time.Second)
	want := []time.Duration{250, 500, 1000, 2000, 4000, 5000, 5000}
	for i, w := range want {
		if got := next(); got != w*time.Millisecond {
			t.Fatalf("step %d: got %s, want %s", i, got, w*time.Millisecond)
		}
	}
}

func TestMQTTOptions(t *testing.T) {
	m := NewMQTT(MQTTConfig{Broker: "tcp://broker:1883", RootTopic: "home", QoS: 1})
	lost := make(chan error, 1)
	opts := m.Options(lost)

	if !strings.HasPrefix(opts.ClientID, "sensornode-") {
		t.Fatalf("client id %q", opts.ClientID)
	}
	if !opts.WillEnabled || opts.WillTopic != "home/status" || string(opts.WillPayload) != "offline" || !opts.WillRetained {
		t.Fatalf("will not configured: %+v", opts)
	}
	if opts.AutoReconnect {
		t.Fatal("paho must not reconnect on its own")
	}
	opts.OnConnectionLost(nil, errors.New("reset"))
	select {
	case err := <-lost:
		if err == nil || err.Error() != "reset" {
			t.Fatalf("lost = %v", err)
		}
	default:
		t.Fatal("connection loss not signalled")
	}
	if m.String() != "tcp://broker:1883" {
		t.Fatalf("String() = %q", m.String())
	}

	m.SetRootTopic("garden")
	if got := m.Options(lost).WillTopic; got != "garden/status" {
		t.Fatalf("will after retarget = %q", got)
	}
}

func TestMQTTLinkCloseMarksOffline(t *testing.T) {
	c := &fakeClient{tok: doneToken(nil), connected: true}
	l := &mqttLink{c: c, qos: 1, lost: make(chan error, 1), timeout: 20 * time.Millisecond, avail: "home/status"}
	l.Close()
	if c.topic != "home/status" || !c.retained || c.payload != "offline" {
		t.Fatalf("unexpected close publish %+v", c)
	}
	if !c.disconnected {
		t.Fatal("Close must disconnect")
	}

	c = &fakeClient{tok: doneToken(nil)}
	l = &mqttLink{c: c, lost: make(chan error, 1), timeout: 20 * time.Millisecond, avail: "home/status"}
	l.Close()
	if c.topic != "" {
		t.Fatalf("published %q on a dead session", c.topic)
	}
}

func TestMQTTLinkPublish(t *testing.T) {
	c := &fakeClient{}
	l := &mqttLink{c: c, qos: 1, lost: make(chan error, 1), timeout: 20 * time.Millisecond}

	c.tok = doneToken(nil)
	if err := l.Publish("home/kitchen", []byte("x")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if c.topic != "home/kitchen" || c.qos != 1 || c.retained {
		t.Fatalf("unexpected publish args %+v", c)
	}

	c.tok = doneToken(errors.New("not connected"))
	if err := l.Publish("t", nil); errcode.Of(err) != errcode.NotConnected {
		t.Fatalf("err = %v", err)
	}

	c.tok = &fakeToken{done: make(chan struct{})}
	if err := l.Publish("t", nil); errcode.Of(err) != errcode.Timeout {
		t.Fatalf("err = %v", err)
	}

	l.Close()
	if !c.disconnected {
		t.Fatal("Close must disconnect")
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

type published struct{ topic, payload string }

type fakeLink struct {
	mu         sync.Mutex
	out        chan published
	lost       chan error
	closed     bool
	publishErr error
}

func (l *fakeLink) Publish(topic string, payload []byte) error {
	if l.publishErr != nil {
		return l.publishErr
	}
	l.out <- published{topic, string(payload)}
	return nil
}
func (l *fakeLink) Lost() <-chan error { return l.lost }
func (l *fakeLink) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}
func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
func (l *fakeLink) next(t *testing.T) published {
	t.Helper()
	select {
	case p := <-l.out:
		return p
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broker publish")
		return published{}
	}
}

type fakeDialer struct {
	mu         sync.Mutex
	failures   int
	publishErr error
	links      []*fakeLink
	roots      []string
	attempts   int
}

func (d *fakeDialer) Dial(context.Context) (Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	l := &fakeLink{out: make(chan published, 8), lost: make(chan error, 1), publishErr: d.publishErr}
	d.links = append(d.links, l)
	return l, nil
}

func (d *fakeDialer) String() string { return "fake" }

func (d *fakeDialer) SetRootTopic(root string) {
	d.mu.Lock()
	d.roots = append(d.roots, root)
	d.mu.Unlock()
}

func (d *fakeDialer) rootTopics() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.roots...)
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) current() *fakeLink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.links[len(d.links)-1]
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

type fakeClient struct {
	tok          mqtt.Token
	topic        string
	qos          byte
	retained     bool
	payload      interface{}
	connected    bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic, c.qos, c.retained, c.payload = topic, qos, retained, payload
	return c.tok
}

func (c *fakeClient) Disconnect(uint)   { c.disconnected = true }
func (c *fakeClient) IsConnected() bool { return c.connected }

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) map[string]any {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok {
			t.Fatalf("state payload type: got %T, want map[string]any", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for bridge/state")
		return nil
	}
}

func assertLevelStatus(t *testing.T, payload map[string]any, wantLevel, wantStatus string) {
	t.Helper()
	gotLevel, _ := payload["level"].(string)
	gotStatus, _ := payload["status"].(string)
	if gotLevel != wantLevel || gotStatus != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (payload=%v)",
			gotLevel, gotStatus, wantLevel, wantStatus, payload)
	}
}
