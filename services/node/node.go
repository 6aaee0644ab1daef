// Package node is the sensor node runtime. One goroutine owns the registry,
// the node settings, the scheduler and the display state; everything else
// reaches them through Submit.
package node

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/services/display"
	"sensornode-go/services/metrics"
	"sensornode-go/services/protocol"
	"sensornode-go/services/registry"
	"sensornode-go/services/scheduler"
	"sensornode-go/services/sensors"
	"sensornode-go/services/store"
	"sensornode-go/services/weather"
	"sensornode-go/types"
	"sensornode-go/version"
	"sensornode-go/x/logring"
	"sensornode-go/x/timex"
)

// Task names.
const (
	TaskPoll = "poll"
	TaskAux  = "aux"
)

// LoopPeriod is how often the run loop checks the scheduler.
const LoopPeriod = 100 * time.Millisecond

// FallbackPage is served when the page file cannot be read.
const FallbackPage = `<!DOCTYPE html><html><head><title>sensornode</title></head>` +
	`<body><p>configuration page missing</p></body></html>`

// Source enumerates and reads sensors.
type Source interface {
	Enumerate() []sensors.Device
	Read(id string) (float64, error)
}

// Weather is the auxiliary refresh source.
type Weather interface {
	Fetch(ctx context.Context) (weather.Report, error)
}

type Options struct {
	Config   types.NodeConfig // defaults; the store overrides them on Boot
	Store    *store.Store
	PageFile string
	Sensors  Source
	Conn     *bus.Connection  // readings are published here; nil disables publishing
	Display  display.Renderer // nil when no display is attached
	Weather  Weather          // nil disables the aux task
	Ring     *logring.Ring
	Metrics  *metrics.Metrics
	Log      *slog.Logger
	Clock    timex.Clock
}

type call struct {
	req   protocol.Request
	reply chan protocol.Response
}

type Node struct {
	cfg     types.NodeConfig
	reg     *registry.Registry
	sched   *scheduler.Scheduler
	store   *store.Store
	src     Source
	conn    *bus.Connection
	disp    display.Renderer
	weather Weather
	ring    *logring.Ring
	m       *metrics.Metrics
	log     *slog.Logger
	clock   timex.Clock

	pageFile string
	page     []byte
	outside  display.Outside

	ctx  context.Context
	reqs chan call
}

func New(o Options) *Node {
	n := &Node{
		cfg:      o.Config,
		store:    o.Store,
		src:      o.Sensors,
		conn:     o.Conn,
		disp:     o.Display,
		weather:  o.Weather,
		ring:     o.Ring,
		m:        o.Metrics,
		log:      o.Log,
		clock:    o.Clock.Or(),
		pageFile: o.PageFile,
		ctx:      context.Background(),
		reqs:     make(chan call),
	}
	if n.log == nil {
		n.log = slog.Default()
	}
	if n.ring == nil {
		n.ring = logring.New(types.LogCapacity, types.LogMessageMaxLen, n.clock)
	}
	if n.pageFile == "" {
		n.pageFile = store.DefaultPage
	}
	n.reg = registry.New(n.cfg.RootTopic, n.log.With("component", "registry"))
	n.sched = scheduler.New(n.clock)
	return n
}

// Boot registers every enumerated sensor, merges the stored settings, loads
// the page and arms both tasks with an immediate first run.
func (n *Node) Boot() {
	if n.src != nil {
		for _, d := range n.src.Enumerate() {
			_, _ = n.reg.Register(d.ID, d.Kind, d.Measurand)
		}
	}
	if n.store != nil {
		_ = n.store.Load(n.reg, &n.cfg)
		page, err := n.store.LoadPage(n.pageFile)
		if err == nil {
			n.page = page
		}
	}
	if n.page == nil {
		n.page = []byte(FallbackPage)
	}
	n.reg.SetRootTopic(n.cfg.RootTopic)
	n.announceRoot()

	n.sched.Add(TaskPoll, timex.Seconds(n.cfg.SensorPollSeconds), n.poll)
	n.sched.Add(TaskAux, timex.Seconds(n.cfg.AuxRefreshSeconds), n.aux)
	n.sched.SetEnabled(TaskAux, n.weather != nil)
	n.sched.Trigger(TaskPoll)
	n.sched.Trigger(TaskAux)

	n.m.SetSensors(n.reg.Len())
	n.log.Info("node booted",
		"node", n.cfg.NodeName,
		"topic", n.cfg.RootTopic,
		"sensors", n.reg.Len(),
		"poll_s", n.cfg.SensorPollSeconds,
		"aux_s", n.cfg.AuxRefreshSeconds,
	)
}

// Run drives the scheduler and serves submitted requests until ctx ends.
func (n *Node) Run(ctx context.Context) {
	n.ctx = ctx
	tick := time.NewTicker(LoopPeriod)
	defer tick.Stop()

	n.sched.Tick()
	for {
		select {
		case <-ctx.Done():
			n.log.Info("node stopping")
			return
		case c := <-n.reqs:
			c.reply <- n.Handle(c.req)
		case <-tick.C:
			n.sched.Tick()
		}
	}
}

// Submit hands req to the run loop and waits for its response.
func (n *Node) Submit(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	c := call{req: req, reply: make(chan protocol.Response, 1)}
	select {
	case n.reqs <- c:
	case <-ctx.Done():
		return protocol.Response{}, errcode.Wrap(errcode.Timeout, "submit", ctx.Err())
	}
	select {
	case resp := <-c.reply:
		return resp, nil
	case <-ctx.Done():
		return protocol.Response{}, errcode.Wrap(errcode.Timeout, "submit", ctx.Err())
	}
}

// Handle serves one request. Only the run loop may call it once Run started.
func (n *Node) Handle(req protocol.Request) protocol.Response {
	cmd := protocol.Parse(req)
	n.m.RecordRequest(cmd.Op.String())

	switch cmd.Op {
	case protocol.OpPage:
		return protocol.HTML(n.page)
	case protocol.OpConfig:
		out, err := protocol.EncodeConfig(make([]byte, 0, protocol.ConfigCap()), protocol.ConfigView{
			Version: version.Version,
			Build:   version.Build,
			Node:    n.cfg,
		})
		return n.encoded(cmd.Op, out, err)
	case protocol.OpSensors:
		out, err := protocol.EncodeSensors(make([]byte, 0, protocol.SensorsCap()), n.reg.All(), n.cfg.HighlightedSensor)
		return n.encoded(cmd.Op, out, err)
	case protocol.OpLogs:
		out, err := protocol.EncodeLogs(make([]byte, 0, protocol.LogsCap()), n.ring.Next(), n.ring.Since(cmd.Since))
		return n.encoded(cmd.Op, out, err)
	case protocol.OpMutate:
		n.Mutate(cmd.Form)
		return protocol.Redirect()
	}
	return protocol.NotFound()
}

func (n *Node) encoded(op protocol.Op, out []byte, err error) protocol.Response {
	if err != nil {
		n.log.Error("encode failed", "op", op.String(), "err", err)
		return protocol.Failure()
	}
	return protocol.JSON(out)
}

// Config returns the current node settings.
func (n *Node) Config() types.NodeConfig { return n.cfg }

// Sensor returns the current record for id.
func (n *Node) Sensor(id string) (types.SensorRecord, bool) { return n.reg.Find(id) }

// highlighted finds the shown sensor; form values arrive lower-cased so the
// id is matched without case.
func (n *Node) highlighted() (types.SensorRecord, bool) {
	if n.cfg.HighlightedSensor == "" {
		return types.SensorRecord{}, false
	}
	for rec := range n.reg.All() {
		if strings.EqualFold(rec.ID, n.cfg.HighlightedSensor) {
			return rec, true
		}
	}
	return types.SensorRecord{}, false
}
