package panel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/dudk/pskrx"
)

// Reply is sent in response to a control message.
type Reply struct {
	Type   string        `json:"type"`
	Params *pskrx.Params `json:"params,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Size is a requested view size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 65536,
}

// Handler returns http handler of the panel:
//
//	GET  /constellation.png  rendered view
//	GET  /level?db=true      signal level
//	GET  /params             current parameters
//	POST /params             apply control message
//	POST /resize             resize the view
//	GET  /ws                 snapshots stream, accepts control messages
func (p *Panel) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /constellation.png", p.serveImage)
	mux.HandleFunc("GET /level", p.serveLevel)
	mux.HandleFunc("GET /params", p.serveParams)
	mux.HandleFunc("POST /params", p.serveControl)
	mux.HandleFunc("POST /resize", p.serveResize)
	mux.HandleFunc("GET /ws", p.serveWS)
	return mux
}

func (p *Panel) serveImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	if err := p.renderer.WritePNG(w); err != nil {
		p.log.Warn("failed to write image: ", err)
	}
}

func (p *Panel) serveLevel(w http.ResponseWriter, r *http.Request) {
	decibel := true
	if v := r.URL.Query().Get("db"); v != "" {
		var err error
		if decibel, err = strconv.ParseBool(v); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	p.writeJSON(w, http.StatusOK, map[string]interface{}{
		"level": p.ctrl.SignalLevel(decibel),
		"db":    decibel,
	})
}

func (p *Panel) serveParams(w http.ResponseWriter, r *http.Request) {
	params := p.ctrl.Params()
	p.writeJSON(w, http.StatusOK, Reply{Type: "params", Params: &params})
}

func (p *Panel) serveControl(w http.ResponseWriter, r *http.Request) {
	var c Control
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reply, err := p.reply(c)
	switch {
	case err == nil:
		p.writeJSON(w, http.StatusOK, reply)
	case errors.Is(err, ErrInvalidControl):
		p.writeJSON(w, http.StatusBadRequest, reply)
	default:
		p.writeJSON(w, http.StatusInternalServerError, reply)
	}
}

func (p *Panel) serveResize(w http.ResponseWriter, r *http.Request) {
	var s Size
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.Width < 1 || s.Height < 1 {
		http.Error(w, "size must be positive", http.StatusBadRequest)
		return
	}
	p.renderer.Resize(s.Width, s.Height)
	w.WriteHeader(http.StatusNoContent)
}

// serveWS streams snapshots to the client and applies its control
// messages. Only the writer goroutine writes to the connection.
func (p *Panel) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Debug("websocket upgrade failed: ", err)
		return
	}
	snapshots, cancel := p.Subscribe()
	replies := make(chan Reply, 16)
	done := make(chan struct{})
	go func() {
		defer conn.Close()
		for {
			var msg interface{}
			select {
			case s, ok := <-snapshots:
				if !ok {
					return
				}
				msg = s
			case reply := <-replies:
				msg = reply
			case <-done:
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				p.log.Debug("websocket write failed: ", err)
				return
			}
		}
	}()
	defer close(done)
	defer cancel()

	for {
		var c Control
		if err := conn.ReadJSON(&c); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Debug("websocket read failed: ", err)
			}
			return
		}
		reply, _ := p.reply(c)
		select {
		case replies <- reply:
		default:
			p.log.Debug("websocket reply dropped")
		}
	}
}

// reply applies control message and reports result.
func (p *Panel) reply(c Control) (Reply, error) {
	if err := p.Apply(c); err != nil {
		p.log.Debug("control ", c.Param, " rejected: ", err)
		return Reply{Type: "error", Error: err.Error()}, err
	}
	params := p.ctrl.Params()
	return Reply{Type: "params", Params: &params}, nil
}

func (p *Panel) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		p.log.Warn("failed to write response: ", err)
	}
}
