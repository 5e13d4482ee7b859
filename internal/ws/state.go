package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-lightbridge/internal/led"
)

const writeWait = 200 * time.Millisecond

// State mirrors the ring to websocket clients. It is an led.Driver, so it
// can be teed next to the hardware driver.
type State struct {
	mu     sync.RWMutex
	FPS    float64
	Driver string // name of the hardware driver, reported to clients

	rgb       []byte
	frameID   uint64
	startTime time.Time
	clients   map[*websocket.Conn]bool
	upgrader  websocket.Upgrader
}

type topology struct {
	Count  int     `json:"count"`
	FPS    float64 `json:"fps"`
	Driver string  `json:"driver"`
}

type frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGB     []byte `json:"rgb"`
}

func NewState(count int, fps float64, driver string) *State {
	if count < 0 {
		count = 0
	}
	return &State{
		FPS:       fps,
		Driver:    driver,
		rgb:       make([]byte, count*3),
		startTime: time.Now(),
		clients:   map[*websocket.Conn]bool{},
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Handler routes /ws and /health.
func (s *State) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}

func (s *State) SetRGB(i int, c colorful.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i*3 >= len(s.rgb) {
		return fmt.Errorf("set_rgb %d of %d: %w", i, len(s.rgb)/3, led.ErrInvalidPosition)
	}
	s.rgb[i*3+0], s.rgb[i*3+1], s.rgb[i*3+2] = c.Clamped().RGB255()
	return nil
}

// Clear turns all LEDs off. This does not trigger Flush().
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rgb {
		s.rgb[i] = 0
	}
}

// Flush broadcasts the pending frame. Slow or gone clients are dropped;
// they never fail the frame.
func (s *State) Flush() error {
	s.mu.Lock()
	s.frameID++
	b, err := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: s.frameID, RGB: s.rgb})
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.broadcast(b)
	return nil
}

func (s *State) FrameID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameID
}

// Close disconnects every client.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.Close()
		delete(s.clients, c)
	}
	return nil
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// register and greet under the lock so no frame is written concurrently
	s.mu.Lock()
	s.clients[conn] = true
	b, _ := json.Marshal(topology{Count: len(s.rgb) / 3, FPS: s.FPS, Driver: s.Driver})
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, b)
	s.mu.Unlock()
	if err != nil {
		s.drop(conn)
		return
	}
	log.Debug().Str("remote", r.RemoteAddr).Msg("preview client connected")

	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"count":    len(s.rgb) / 3,
		"fps":      s.FPS,
		"driver":   s.Driver,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *State) broadcast(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
			_ = c.Close()
			delete(s.clients, c)
		}
	}
}

func (s *State) drop(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[conn] {
		delete(s.clients, conn)
	}
	_ = conn.Close()
}
