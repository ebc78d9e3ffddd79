package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"deliveryman-auth/auth/domain"
)

// LoginService é o que o handler precisa do orquestrador.
type LoginService interface {
	Login(ctx context.Context, cpf, password string) (domain.LoginResult, error)
}

const maxBodyBytes = 1 << 20

// Mensagens devolvidas ao cliente.
const (
	msgInvalidCredentials = "Credenciais inválidas"
	msgInvalidToken       = "Token inválido"
	msgInternal           = "Erro interno"
)

// Handler atende as rotas HTTP do serviço.
type Handler struct {
	Auth   LoginService
	Tokens domain.TokenParser
	Secret []byte
	Stats  domain.LoginStats
	// KeyFn identifica o cliente nos contadores. Use a mesma do RateLimit.
	KeyFn  KeyFunc
	Logger *slog.Logger
}

type loginRequest struct {
	CPF      string `json:"cpf"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string         `json:"access_token"`
	User        domain.Subject `json:"user"`
}

// Routes monta o mux. Os middlewares de login (RateLimit, Concurrency) se
// aplicam só ao POST /auth/login, na ordem recebida.
func (h *Handler) Routes(loginMiddlewares ...func(http.Handler) http.Handler) http.Handler {
	var login http.Handler = http.HandlerFunc(h.login)
	for i := len(loginMiddlewares) - 1; i >= 0; i-- {
		login = loginMiddlewares[i](login)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/login", login)
	mux.HandleFunc("GET /auth/me", h.me)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return CORS(mux)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handler) clientKey(r *http.Request) string {
	if h.KeyFn == nil {
		return DefaultKeyFunc("", false)(r)
	}
	return h.KeyFn(r)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido")
		return
	}
	if msg := validateLogin(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	key := h.clientKey(r)
	res, err := h.Auth.Login(r.Context(), req.CPF, req.Password)
	switch {
	case err == nil:
		recordAttempt(r.Context(), h.Stats, key, domain.LoginSucceeded)
		writeJSON(w, http.StatusOK, loginResponse{AccessToken: res.Token, User: res.Subject})
	case errors.Is(err, domain.ErrInvalidCredentials):
		recordAttempt(r.Context(), h.Stats, key, domain.LoginRejected)
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	default:
		recordAttempt(r.Context(), h.Stats, key, domain.LoginFailed)
		h.logger().ErrorContext(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// validateLogin devolve a mensagem de validação, ou "" se o corpo está ok.
func validateLogin(req loginRequest) string {
	if strings.TrimSpace(req.CPF) == "" {
		return "CPF é obrigatório"
	}
	if _, err := domain.NormalizeCPF(req.CPF); err != nil {
		return "CPF deve ter 11 dígitos"
	}
	if req.Password == "" {
		return "Senha é obrigatória"
	}
	return ""
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	raw, ok := bearerToken(r)
	if !ok || h.Tokens == nil {
		writeError(w, http.StatusUnauthorized, msgInvalidToken)
		return
	}
	claims, err := h.Tokens.Parse(raw, h.Secret)
	if err != nil {
		h.logger().DebugContext(r.Context(), "token rejected", "error", err)
		writeError(w, http.StatusUnauthorized, msgInvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, domain.Subject{ID: claims.Subject, CPF: claims.CPF, Role: claims.Role})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
