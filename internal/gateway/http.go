package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tdermendjiev/aiwe-client/internal/agent"
)

// HTTPGateway is the request/response front end: one instruction per
// POST, one reply per response. Callers that omit the session id get a
// fresh one back and carry it on subsequent requests.
type HTTPGateway struct {
	Addr  string
	Brain agent.Brain

	server *http.Server
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
}

func NewHTTPGateway(addr string, brain agent.Brain) *HTTPGateway {
	return &HTTPGateway{Addr: addr, Brain: brain}
}

func (g *HTTPGateway) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", g.handleChat)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	g.server = &http.Server{Addr: g.Addr, Handler: mux}
	log.Printf("Gateway: HTTP listening on %s", g.Addr)

	err := g.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (g *HTTPGateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := g.Brain.Think(r.Context(), req.SessionID, req.Message)
	if err != nil {
		log.Printf("Gateway: think failed: %v", err)
		http.Error(w, "failed to process the instruction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{SessionID: req.SessionID, Reply: reply})
}

// Send has nowhere to push in a request/response front end, so
// scheduled output is logged instead.
func (g *HTTPGateway) Send(sessionID string, text string) error {
	log.Printf("Gateway: [%s] %s", sessionID, text)
	return nil
}

func (g *HTTPGateway) Stop() error {
	if g.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.server.Shutdown(ctx)
}
