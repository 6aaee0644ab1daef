// Package weather fetches the current outside conditions from an
// OpenWeatherMap-compatible endpoint.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"sensornode-go/errcode"
)

const (
	DefaultBaseURL = "http://api.openweathermap.org"
	DefaultTimeout = 10 * time.Second

	kelvin   = 273.15
	maxReply = 16 << 10
)

// Report is the part of the reply the node shows.
type Report struct {
	Icon  string // "<code>.bmp"
	TempC float64
	Valid bool
}

type Client struct {
	BaseURL string
	CityID  string
	APIKey  string
	HTTP    *http.Client
}

// reply mirrors the fields read from /data/2.5/weather.
type reply struct {
	Weather []struct {
		Icon string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
}

// Fetch performs one request. A reply without an icon or temperature is an
// error; the caller keeps its previous report.
func (c *Client) Fetch(ctx context.Context) (Report, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	q := url.Values{"id": {c.CityID}, "appid": {c.APIKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return Report{}, errcode.Wrap(errcode.InvalidParams, "weather", err)
	}
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Report{}, errcode.Wrap(errcode.NotConnected, "weather", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Report{}, &errcode.E{C: errcode.Error, Op: "weather", Msg: resp.Status}
	}

	var r reply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReply)).Decode(&r); err != nil {
		return Report{}, errcode.Wrap(errcode.Error, "weather", err)
	}
	if len(r.Weather) == 0 || len(r.Weather[0].Icon) < 3 || r.Main.Temp == nil {
		return Report{}, &errcode.E{C: errcode.Error, Op: "weather", Msg: "incomplete reply"}
	}
	return Report{
		Icon:  fmt.Sprintf("%s.bmp", r.Weather[0].Icon[:3]),
		TempC: *r.Main.Temp - kelvin,
		Valid: true,
	}, nil
}
