package node

import (
	"context"
	"strings"

	"sensornode-go/bus"
	"sensornode-go/services/display"
	"sensornode-go/services/weather"
	"sensornode-go/types"
	"sensornode-go/x/mathx"
)

// PublishTopic is where the reading of sensor id goes on the local bus.
func PublishTopic(id string) bus.Topic { return bus.T("publish", id) }

// RootTopicTopic carries the current root topic, retained.
var RootTopicTopic = bus.T("node", "root_topic")

func (n *Node) announceRoot() {
	if n.conn == nil {
		return
	}
	n.conn.Publish(n.conn.NewMessage(RootTopicTopic, n.cfg.RootTopic, true))
}

// poll samples every sensor, publishes the enabled ones and redraws.
// A failed read keeps the previous value.
func (n *Node) poll() {
	failed := 0
	for rec := range n.reg.All() {
		v, err := n.src.Read(rec.ID)
		n.m.RecordSample(err == nil)
		if err != nil {
			failed++
			n.log.Warn("sensor read failed", "id", rec.ID, "err", err)
			continue
		}
		if rec.Measurand == types.MeasurandPressure {
			v = mathx.SeaLevel(v, n.cfg.Altitude)
		}
		n.reg.SetValue(rec.ID, v)
	}

	published := 0
	for rec := range n.reg.All() {
		if !rec.Enabled || rec.Value == types.NoValue {
			continue
		}
		n.publish(rec)
		published++
	}
	n.log.Debug("poll done", "sensors", n.reg.Len(), "failed", failed, "published", published)
	n.render()
}

func (n *Node) publish(rec types.SensorRecord) {
	if n.conn == nil {
		return
	}
	r := types.Reading{
		SensorID: rec.ID,
		Topic:    rec.Topic,
		Line:     Line(rec, n.cfg.NodeName),
	}
	n.conn.Publish(n.conn.NewMessage(PublishTopic(rec.ID), r, false))
	n.m.RecordPublished()
}

// aux refreshes the outside reading. On failure the last report stays.
func (n *Node) aux() {
	if n.weather == nil {
		return
	}
	ctx, cancel := context.WithTimeout(n.ctx, weather.DefaultTimeout)
	defer cancel()
	rep, err := n.weather.Fetch(ctx)
	if err != nil {
		n.log.Warn("weather fetch failed", "err", err)
		return
	}
	n.outside = display.Outside{TempC: rep.TempC, Icon: rep.Icon, Valid: rep.Valid}
	n.log.Debug("weather updated", "temp_c", rep.TempC, "icon", rep.Icon)
	n.render()
}

func (n *Node) render() {
	if n.disp == nil || !n.cfg.DisplayEnabled {
		return
	}
	inside, _ := n.highlighted()
	if err := n.disp.Render(display.Compose(inside, n.outside, n.clock())); err != nil {
		n.log.Warn("display render failed", "err", err)
	}
}

// Line formats one reading as a line-protocol record:
//
//	<measurand>,location=<loc>,node=<node>,sensor=<kind> value=<value>
func Line(rec types.SensorRecord, node string) string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString(escape(string(rec.Measurand)))
	b.WriteString(",location=")
	b.WriteString(escape(rec.Location))
	b.WriteString(",node=")
	b.WriteString(escape(node))
	b.WriteString(",sensor=")
	b.WriteString(escape(rec.Kind))
	b.WriteString(" value=")
	b.WriteString(rec.Value)
	return b.String()
}

var tagEscaper = strings.NewReplacer(" ", `\ `, ",", `\,`, "=", `\=`)

func escape(s string) string { return tagEscaper.Replace(s) }
