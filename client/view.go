package voxcli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bosley/voxchat/conversation"
	"github.com/gorilla/mux"
)

// viewServer exposes the conversation to browser chat views: /ws streams
// entries as they are rendered and /api/messages returns everything so far.
type viewServer struct {
	renderer *conversation.WebSocketRenderer
	server   *http.Server
}

func newViewServer(addr string, renderer *conversation.WebSocketRenderer) *viewServer {
	v := &viewServer{renderer: renderer}
	v.server = &http.Server{
		Addr:              addr,
		Handler:           v.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return v
}

func (v *viewServer) handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/ws", v.renderer)
	router.HandleFunc("/api/messages", v.handleMessages).Methods(http.MethodGet)
	return router
}

func (v *viewServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v.renderer.Messages()); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (v *viewServer) start() {
	go func() {
		slog.Info("Chat view listening", "address", v.server.Addr)
		if err := v.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Chat view server error", "error", err)
		}
	}()
}

func (v *viewServer) stop() {
	v.renderer.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.server.Shutdown(ctx); err != nil {
		slog.Error("Failed to stop chat view server", "error", err)
	}
}
