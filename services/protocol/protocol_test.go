package protocol

import (
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensornode-go/errcode"
	"sensornode-go/types"
)

func TestDecodeForm(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Form
	}{
		{"empty", "", Form{}},
		{"single", "node=Attic", Form{"node": "attic"}},
		{"trim and lower", "topic=  Home ", Form{"topic": "home"}},
		{"empty value", "show=", Form{"show": ""}},
		{"missing equals", "display&node=n", Form{"display": "", "node": "n"}},
		{"duplicate last wins", "node=a&node=b", Form{"node": "b"}},
		{"empty key skipped", "=x&&node=n", Form{"node": "n"}},
		{"value with equals", "loc-A1=a=b", Form{"loc-A1": "a=b"}},
		{"no percent decoding", "loc-A1=living%20room", Form{"loc-A1": "living%20room"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecodeForm(tc.body))
		})
	}
}

func TestFormAccessors(t *testing.T) {
	f := DecodeForm("en-A1=on&display&node=")
	assert.True(t, f.Checked("en-A1"))
	assert.True(t, f.Checked("display"))
	assert.False(t, f.Checked("en-B2"))

	_, ok := f.Text("node")
	assert.False(t, ok, "empty text is absent")
	v, ok := f.Get("node")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestParse(t *testing.T) {
	cases := []struct {
		req   Request
		op    Op
		since uint32
	}{
		{Request{Method: "GET", Path: "/"}, OpPage, 0},
		{Request{Method: "get", Path: "/config"}, OpConfig, 0},
		{Request{Method: "GET", Path: "/sensors"}, OpSensors, 0},
		{Request{Method: "GET", Path: "/logs"}, OpLogs, 0},
		{Request{Method: "GET", Path: "/logs", Query: "id=17"}, OpLogs, 17},
		{Request{Method: "GET", Path: "/logs?id=5"}, OpLogs, 5},
		{Request{Method: "GET", Path: "/logs", Query: "id=-1"}, OpLogs, 0},
		{Request{Method: "GET", Path: "/logs", Query: "id=99999999999"}, OpLogs, 0},
		{Request{Method: "POST", Path: "/", Body: "node=x"}, OpMutate, 0},
		{Request{Method: "POST", Path: "/config"}, OpNotFound, 0},
		{Request{Method: "DELETE", Path: "/"}, OpNotFound, 0},
		{Request{Method: "GET", Path: "/favicon.ico"}, OpNotFound, 0},
	}
	for _, tc := range cases {
		t.Run(tc.req.Method+" "+tc.req.Path, func(t *testing.T) {
			cmd := Parse(tc.req)
			assert.Equal(t, tc.op, cmd.Op)
			assert.Equal(t, tc.since, cmd.Since)
		})
	}
}

func TestParseCapsBody(t *testing.T) {
	body := "node=n&" + strings.Repeat("x", MaxBodyLen) + "&topic=late"
	cmd := Parse(Request{Method: "POST", Path: "/", Body: body})
	require.Equal(t, OpMutate, cmd.Op)
	assert.Equal(t, "n", cmd.Form["node"])
	_, ok := cmd.Form.Get("topic")
	assert.False(t, ok, "fields past the body cap are ignored")
}

func TestResponses(t *testing.T) {
	assert.Equal(t, 303, Redirect().Status)
	assert.Equal(t, "/", Redirect().Location)
	assert.Equal(t, 404, NotFound().Status)
	assert.Equal(t, ContentJSON, JSON(nil).ContentType)
	assert.Equal(t, ContentHTML, HTML(nil).ContentType)
	assert.Equal(t, "not_found", OpNotFound.String())
}

func seq(recs []types.SensorRecord) iter.Seq[types.SensorRecord] {
	return slices.Values(recs)
}

func TestEncodeSensors(t *testing.T) {
	recs := []types.SensorRecord{
		{ID: "70T", Kind: "SHTC3", Measurand: types.MeasurandTemperature, Enabled: true,
			Location: "living.room", Correction: -0.5, Value: "21.25"},
		{ID: "A0", Kind: "LDR", Measurand: types.MeasurandBrightness, Location: `say "hi"`, Value: "?"},
	}
	out, err := EncodeSensors(make([]byte, 0, SensorsCap()), seq(recs), "70t")
	require.NoError(t, err)
	want := `{"70T":{"enabled":true,"location":"living.room","type":"SHTC3","measurand":"temperature","value":"21.25","correction":-0.50,"isHighlighted":true},` +
		`"A0":{"enabled":false,"location":"say \"hi\"","type":"LDR","measurand":"brightness","value":"?","correction":0.00,"isHighlighted":false}}`
	assert.Equal(t, want, string(out))
	assert.True(t, json.Valid(out))

	out, err = EncodeSensors(make([]byte, 0, SensorsCap()), seq(nil), "")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))
}

// worstString is n bytes that each escape to the full \u00XX width.
func worstString(n int, b byte) string { return strings.Repeat(string(rune(b)), n) }

func TestEncodeSensorsWorstCase(t *testing.T) {
	recs := make([]types.SensorRecord, types.MaxSensors+2)
	for i := range recs {
		recs[i] = types.SensorRecord{
			ID:         worstString(types.IDMaxLen, byte(0x10+i%16)),
			Kind:       worstString(types.KindMaxLen, 0x01),
			Measurand:  types.Measurand(worstString(types.MeasurandMaxLen, 0x02)),
			Location:   worstString(types.LocationMaxLen+5, 0x03),
			Value:      worstString(types.ValueMaxLen, 0x04),
			Correction: -5000,
		}
	}
	buf := make([]byte, 0, SensorsCap())
	out, err := EncodeSensors(buf, seq(recs), "")
	require.NoError(t, err)
	assert.Equal(t, SensorsCap(), len(out), "worst case fills the buffer exactly")
	assert.Equal(t, cap(buf), cap(out), "no reallocation")

	var m map[string]map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Len(t, m, types.MaxSensors)
	for _, v := range m {
		assert.Equal(t, -1000.0, v["correction"])
	}
}

func TestEncodeConfig(t *testing.T) {
	v := ConfigView{
		Version: "1.2.0",
		Build:   "abc123",
		Node: types.NodeConfig{
			NodeName: "attic", RootTopic: "home", Altitude: 312.5,
			SensorPollSeconds: 30, AuxRefreshSeconds: 900, DisplayEnabled: true,
			HighlightedSensor: "70T",
		},
	}
	out, err := EncodeConfig(make([]byte, 0, ConfigCap()), v)
	require.NoError(t, err)
	assert.Equal(t, `{"version":"1.2.0","build":"abc123","sensor-poll-interval":30,"aux-interval":900,`+
		`"node":"attic","topic":"home","altitude":312.50,"display-enabled":true,"show":"70T"}`, string(out))

	worst := ConfigView{
		Version: worstString(40, 0x01),
		Build:   worstString(40, 0x01),
		Node: types.NodeConfig{
			NodeName:          worstString(types.NodeNameMaxLen, 0x02),
			RootTopic:         worstString(types.RootTopicMaxLen, 0x03),
			Altitude:          -1e9,
			SensorPollSeconds: 4294967295,
			AuxRefreshSeconds: 4294967295,
			DisplayEnabled:    false,
			HighlightedSensor: worstString(types.IDMaxLen, 0x04),
		},
	}
	out, err = EncodeConfig(make([]byte, 0, ConfigCap()), worst)
	require.NoError(t, err)
	assert.Equal(t, ConfigCap(), len(out))
	assert.True(t, json.Valid(out))
}

func TestEncodeLogs(t *testing.T) {
	recs := []types.LogRecord{
		{Seq: 7, Hour: 9, Minute: 5, Second: 3, Level: types.LevelInfo, Message: "config saved"},
		{Seq: 8, Hour: 23, Minute: 59, Second: 59, Level: types.LevelWarn, Message: "read failed\tid=70T"},
	}
	out, err := EncodeLogs(make([]byte, 0, LogsCap()), 9, recs)
	require.NoError(t, err)
	assert.Equal(t, `{"nextId":9,"logs":[{"time":"09:05:03","level":"INFO","msg":"config saved"},`+
		`{"time":"23:59:59","level":"WARN","msg":"read failed\tid=70T"}]}`, string(out))

	out, err = EncodeLogs(make([]byte, 0, LogsCap()), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"nextId":1,"logs":[]}`, string(out))
}

func TestEncodeLogsWorstCase(t *testing.T) {
	recs := make([]types.LogRecord, types.LogCapacity*2)
	for i := range recs {
		recs[i] = types.LogRecord{
			Seq: uint32(i + 1), Hour: 23, Minute: 59, Second: 59,
			Level:   types.LevelError,
			Message: worstString(types.LogMessageMaxLen*2, 0x1f),
		}
	}
	out, err := EncodeLogs(make([]byte, 0, LogsCap()), 4294967295, recs)
	require.NoError(t, err)
	assert.Equal(t, LogsCap(), len(out))

	var got struct {
		NextID uint32 `json:"nextId"`
		Logs   []struct {
			Time, Level, Msg string
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Len(t, got.Logs, types.LogCapacity)
	assert.Equal(t, "ERROR", got.Logs[0].Level)
}

func TestEncodersRejectSmallBuffers(t *testing.T) {
	_, err := EncodeSensors(make([]byte, 0, SensorsCap()-1), seq(nil), "")
	assert.Equal(t, errcode.BufferTooSmall, errcode.Of(err))
	_, err = EncodeConfig(make([]byte, 0, 16), ConfigView{})
	assert.Equal(t, errcode.BufferTooSmall, errcode.Of(err))
	_, err = EncodeLogs(nil, 0, nil)
	assert.Equal(t, errcode.BufferTooSmall, errcode.Of(err))
}

func TestCapacitiesArePositive(t *testing.T) {
	for name, n := range map[string]int{"config": ConfigCap(), "sensors": SensorsCap(), "logs": LogsCap()} {
		assert.Greater(t, n, 0, fmt.Sprintf("%s capacity", name))
	}
}
