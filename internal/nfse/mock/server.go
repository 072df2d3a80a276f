// Package mock is a stand-in for the municipal authority: it accepts signed invoices,
// answers with a random outcome, and collects outcome webhooks.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"golang.org/x/exp/rand"

	"nfseBack/internal/nfse/notify"
)

const (
	DefaultDelay        = 2 * time.Second
	DefaultSuccessRatio = 0.75

	successMessage = "NFS-e processada com sucesso."
	errorMessage   = "Não foi possível processar a NFS-e. Tente novamente mais tarde."
	maxBody        = 5 << 20
)

type Config struct {
	Delay        time.Duration
	SuccessRatio float64
	// WebhookSecret, when set, makes /webhook reject bodies without a valid X-Signature.
	WebhookSecret string
	Seed          uint64
}

type Server struct {
	cfg      Config
	infoLog  *log.Logger
	errorLog *log.Logger

	mu  sync.Mutex
	rng *rand.Rand

	webhooks chan notify.Payload
}

type nfseResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Protocolo string `json:"protocolo"`
}

func New(cfg Config, infoLog, errorLog *log.Logger) *Server {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Server{
		cfg:      cfg,
		infoLog:  infoLog,
		errorLog: errorLog,
		rng:      rand.New(rand.NewSource(seed)),
		webhooks: make(chan notify.Payload, 64),
	}
}

// Webhooks delivers payloads received on /webhook. Payloads are dropped when nobody reads.
func (s *Server) Webhooks() <-chan notify.Payload { return s.webhooks }

func (s *Server) Routes() http.Handler {
	standard := alice.New(s.recoverPanic, s.logRequest, secureHeaders)

	mux := pat.New()
	mux.Post("/nfse", standard.ThenFunc(s.handleNFSe))
	mux.Post("/webhook", standard.ThenFunc(s.handleWebhook))
	mux.Get("/health", standard.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	return mux
}

func (s *Server) handleNFSe(w http.ResponseWriter, r *http.Request) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (mt != "application/xml" && mt != "text/xml") {
		writeJSON(w, http.StatusUnsupportedMediaType, nfseResponse{Status: "error", Message: "expected application/xml"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil || len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, nfseResponse{Status: "error", Message: "empty document"})
		return
	}
	s.infoLog.Printf("[mock] Received NFSe request (%d bytes).", len(body))

	if s.cfg.Delay > 0 {
		if err := wait(r.Context(), s.cfg.Delay); err != nil {
			return
		}
	}

	success, protocol := s.roll()
	s.infoLog.Printf("[mock] Responding to NFSe request with status: %s", map[bool]string{true: "success", false: "error"}[success])
	if !success {
		writeJSON(w, http.StatusUnprocessableEntity, nfseResponse{Status: "error", Message: errorMessage, Protocolo: protocol})
		return
	}
	writeJSON(w, http.StatusOK, nfseResponse{Status: "ok", Message: successMessage, Protocolo: protocol})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "unreadable body"})
		return
	}
	if s.cfg.WebhookSecret != "" && !notify.VerifyHMAC(body, r.Header.Get(notify.SignatureHeader), s.cfg.WebhookSecret) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid signature"})
		return
	}
	var p notify.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
		return
	}
	s.infoLog.Printf("[webhook] Received webhook: %s", body)

	select {
	case s.webhooks <- p:
	default:
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook received."})
}

// roll decides the outcome and draws a protocol number PROT-NNNNNN.
func (s *Server) roll() (bool, string) {
	ratio := s.cfg.SuccessRatio
	s.mu.Lock()
	defer s.mu.Unlock()
	success := s.rng.Float64() < ratio
	return success, fmt.Sprintf("PROT-%06d", s.rng.Intn(1000000))
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				s.errorLog.Printf("panic: %v", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.infoLog.Printf("%s - %s %s %s", r.RemoteAddr, r.Proto, r.Method, r.URL.RequestURI())
		next.ServeHTTP(w, r)
	})
}

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Frame-Options", "deny")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
