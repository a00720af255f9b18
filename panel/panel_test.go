package panel_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/pskrx"
	"github.com/dudk/pskrx/log"
	"github.com/dudk/pskrx/panel"
	"github.com/dudk/pskrx/render"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errFailed = errors.New("controller failed")

// controller records forwarded calls.
type controller struct {
	mu       sync.Mutex
	params   pskrx.Params
	record   string
	network  string
	symbols  []complex64
	level    float64
	failWith error
}

func newController() *controller {
	return &controller{
		params:  pskrx.DefaultParams(),
		symbols: []complex64{complex(1, 0), complex(-1, 0), complex(0.5, 0.5)},
		level:   -6,
	}
}

func (c *controller) set(fn func(*pskrx.Params)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	fn(&c.params)
	return nil
}

func (c *controller) SetModulationOrder(n int) error {
	return c.set(func(p *pskrx.Params) { p.ModulationOrder = n })
}

func (c *controller) SetSymbolRate(v float64) error {
	return c.set(func(p *pskrx.Params) { p.SymbolRate = v })
}

func (c *controller) SetCarrierGain(v float64) error {
	return c.set(func(p *pskrx.Params) { p.CarrierGain = v })
}

func (c *controller) SetTimingGain(v float64) error {
	return c.set(func(p *pskrx.Params) { p.TimingGain = v })
}

func (c *controller) SetRollOff(v float64) error {
	return c.set(func(p *pskrx.Params) { p.RollOff = v })
}

func (c *controller) SetInputRate(v float64) error {
	return c.set(func(p *pskrx.Params) { p.InputRate = v })
}

func (c *controller) AttachRecordingSink(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = path
	return nil
}

func (c *controller) DetachRecordingSink() error {
	return c.AttachRecordingSink("")
}

func (c *controller) AttachNetworkSink(host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.network = net.JoinHostPort(host, strconv.Itoa(port))
	return nil
}

func (c *controller) DetachNetworkSink() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.network = ""
	return nil
}

func (c *controller) SignalLevel(decibel bool) float64 {
	if decibel {
		return c.level
	}
	return 0.5
}

func (c *controller) CopyRecentSymbols(dst []complex64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copy(dst, c.symbols)
}

func (c *controller) Params() pskrx.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

func (c *controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

func newPanel(t *testing.T) (*panel.Panel, *controller, *render.Renderer) {
	t.Helper()
	ctrl := newController()
	r := render.New(render.NewImageBackend())
	r.Resize(64, 64)
	return panel.New(ctrl, r, panel.WithLogger(log.Silent())), ctrl, r
}

func TestModes(t *testing.T) {
	assert.Equal(t, 3, len(panel.Modes))
	m, ok := panel.ModeByLabel("QPSK")
	assert.True(t, ok)
	assert.Equal(t, 4, m.Order)
	_, ok = panel.ModeByLabel("16QAM")
	assert.False(t, ok)

	m, ok = panel.ModeByIndex(2)
	assert.True(t, ok)
	assert.Equal(t, "8PSK", m.Label)
	_, ok = panel.ModeByIndex(3)
	assert.False(t, ok)
	_, ok = panel.ModeByIndex(-1)
	assert.False(t, ok)

	m, ok = panel.ModeByOrder(2)
	assert.True(t, ok)
	assert.Equal(t, "BPSK", m.Label)
}

func TestForward(t *testing.T) {
	p, ctrl, r := newPanel(t)
	assert.Equal(t, 2, r.Mode())

	assert.Nil(t, p.SetModulationOrder(8))
	assert.Equal(t, 8, ctrl.Params().ModulationOrder)
	assert.Equal(t, 8, r.Mode())

	assert.Nil(t, p.SetMode("QPSK"))
	assert.Equal(t, 4, ctrl.Params().ModulationOrder)
	assert.Equal(t, 4, r.Mode())
	assert.True(t, errors.Is(p.SetMode("16QAM"), panel.ErrInvalidControl))

	assert.Nil(t, p.SetSymbolRate(62500))
	assert.Nil(t, p.SetCarrierGain(0.01))
	assert.Nil(t, p.SetTimingGain(0.02))
	assert.Nil(t, p.SetRollOff(0.35))
	assert.Nil(t, p.SetInputRate(500000))
	params := ctrl.Params()
	assert.Equal(t, 62500.0, params.SymbolRate)
	assert.Equal(t, 0.01, params.CarrierGain)
	assert.Equal(t, 0.02, params.TimingGain)
	assert.Equal(t, 0.35, params.RollOff)
	assert.Equal(t, 500000.0, params.InputRate)

	// renderer keeps its mode when controller refuses
	ctrl.fail(errFailed)
	assert.Equal(t, errFailed, p.SetModulationOrder(2))
	assert.Equal(t, 4, r.Mode())
}

func TestApply(t *testing.T) {
	tests := []struct {
		control panel.Control
		err     error
	}{
		{control: panel.Control{Param: panel.ParamMode, Value: "8PSK"}},
		{control: panel.Control{Param: panel.ParamModulationOrder, Value: 4.0}},
		{control: panel.Control{Param: panel.ParamModulationOrder, Value: 4.7}, err: panel.ErrInvalidControl},
		{control: panel.Control{Param: panel.ParamSymbolRate, Value: 62500.0}},
		{control: panel.Control{Param: panel.ParamRecord, Value: "out.zst"}},
		{control: panel.Control{Param: panel.ParamRecord, Value: ""}},
		{control: panel.Control{Param: panel.ParamNetwork, Value: "127.0.0.1:5004"}},
		{control: panel.Control{Param: panel.ParamNetwork, Value: "localhost"}, err: panel.ErrInvalidControl},
		{control: panel.Control{Param: panel.ParamNetwork, Value: "localhost:0"}, err: panel.ErrInvalidControl},
		{control: panel.Control{Param: panel.ParamMode, Value: 2.0}, err: panel.ErrInvalidControl},
		{control: panel.Control{Param: panel.ParamRollOff, Value: "0.5"}, err: panel.ErrInvalidControl},
		{control: panel.Control{Param: "gain", Value: 1.0}, err: panel.ErrInvalidControl},
	}
	for _, test := range tests {
		p, _, _ := newPanel(t)
		err := p.Apply(test.control)
		if test.err != nil {
			assert.True(t, errors.Is(err, test.err), "%v", test.control)
		} else {
			assert.Nil(t, err, "%v", test.control)
		}
	}

	// fractional orders are rejected, not rounded.
	p, ctrl, r := newPanel(t)
	err := p.Apply(panel.Control{Param: panel.ParamModulationOrder, Value: 4.7})
	assert.True(t, errors.Is(err, panel.ErrInvalidControl))
	assert.Equal(t, 2, ctrl.Params().ModulationOrder)
	assert.Equal(t, 2, r.Mode())

	assert.Nil(t, p.Apply(panel.Control{Param: panel.ParamNetwork, Value: "127.0.0.1:5004"}))
	assert.Equal(t, "127.0.0.1:5004", ctrl.network)
	assert.Nil(t, p.Apply(panel.Control{Param: panel.ParamRecord, Value: "out.wav"}))
	assert.Equal(t, "out.wav", ctrl.record)
}

func TestRefresh(t *testing.T) {
	p, ctrl, _ := newPanel(t)
	snapshots, cancel := p.Subscribe()

	s := p.Refresh()
	assert.Equal(t, "snapshot", s.Type)
	assert.Equal(t, ctrl.level, s.Level)
	assert.Equal(t, 2, s.Order)
	assert.Equal(t, [][2]float32{{1, 0}, {-1, 0}, {0.5, 0.5}}, s.Symbols)
	assert.Equal(t, s, <-snapshots)

	// slow subscriber misses snapshots but never blocks refresh
	p.Refresh()
	p.Refresh()
	assert.Equal(t, 1, len(snapshots))

	cancel()
	cancel()
	<-snapshots
	_, ok := <-snapshots
	assert.False(t, ok)
	p.Refresh()
}

func TestRefreshLimit(t *testing.T) {
	ctrl := newController()
	p := panel.New(ctrl, render.New(render.NewImageBackend()), panel.WithSymbols(2))
	assert.Equal(t, 2, len(p.Refresh().Symbols))
}

func TestRun(t *testing.T) {
	p, _, _ := newPanel(t)
	snapshots, cancel := p.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- p.Run(ctx, time.Millisecond)
	}()
	select {
	case s := <-snapshots:
		assert.Equal(t, 3, len(s.Symbols))
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot")
	}
	stop()
	assert.Equal(t, context.Canceled, <-errc)
}

func TestHTTP(t *testing.T) {
	p, ctrl, _ := newPanel(t)
	server := httptest.NewServer(p.Handler())
	defer server.Close()

	p.Refresh()
	resp, err := http.Get(server.URL + "/constellation.png")
	require.Nil(t, err)
	img, err := png.Decode(resp.Body)
	resp.Body.Close()
	require.Nil(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	var level struct {
		Level float64 `json:"level"`
		DB    bool    `json:"db"`
	}
	resp, err = http.Get(server.URL + "/level")
	require.Nil(t, err)
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&level))
	resp.Body.Close()
	assert.Equal(t, -6.0, level.Level)
	assert.True(t, level.DB)

	resp, err = http.Get(server.URL + "/level?db=false")
	require.Nil(t, err)
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&level))
	resp.Body.Close()
	assert.Equal(t, 0.5, level.Level)

	resp, err = http.Get(server.URL + "/level?db=maybe")
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var reply panel.Reply
	resp, err = http.Post(server.URL+"/params", "application/json",
		strings.NewReader(`{"param":"mode","value":"QPSK"}`))
	require.Nil(t, err)
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&reply))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, reply.Params)
	assert.Equal(t, 4, reply.Params.ModulationOrder)

	resp, err = http.Post(server.URL+"/params", "application/json",
		strings.NewReader(`{"param":"mode","value":"16QAM"}`))
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+"/params", "application/json", strings.NewReader(`{`))
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctrl.fail(errFailed)
	resp, err = http.Post(server.URL+"/params", "application/json",
		strings.NewReader(`{"param":"symbol_rate","value":62500}`))
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	ctrl.fail(nil)

	reply = panel.Reply{}
	resp, err = http.Get(server.URL + "/params")
	require.Nil(t, err)
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&reply))
	resp.Body.Close()
	assert.Equal(t, 4, reply.Params.ModulationOrder)

	resp, err = http.Post(server.URL+"/resize", "application/json",
		bytes.NewReader([]byte(`{"width":32,"height":16}`)))
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, err = http.Get(server.URL + "/constellation.png")
	require.Nil(t, err)
	img, err = png.Decode(resp.Body)
	resp.Body.Close()
	require.Nil(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())

	resp, err = http.Post(server.URL+"/resize", "application/json",
		strings.NewReader(`{"width":0,"height":16}`))
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebsocket(t *testing.T) {
	p, ctrl, r := newPanel(t)
	server := httptest.NewServer(p.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)
	defer conn.Close()

	require.Nil(t, conn.WriteJSON(panel.Control{Param: panel.ParamMode, Value: "8PSK"}))
	var reply panel.Reply
	require.Nil(t, conn.ReadJSON(&reply))
	assert.Equal(t, "params", reply.Type)
	require.NotNil(t, reply.Params)
	assert.Equal(t, 8, reply.Params.ModulationOrder)
	assert.Equal(t, 8, ctrl.Params().ModulationOrder)
	assert.Equal(t, 8, r.Mode())

	require.Nil(t, conn.WriteJSON(panel.Control{Param: "gain", Value: 1}))
	reply = panel.Reply{}
	require.Nil(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.NotEmpty(t, reply.Error)

	// subscription is registered before the first reply is sent
	p.Refresh()
	var s panel.Snapshot
	require.Nil(t, conn.ReadJSON(&s))
	assert.Equal(t, "snapshot", s.Type)
	assert.Equal(t, 8, s.Order)
	assert.Equal(t, 3, len(s.Symbols))

	require.Nil(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}
