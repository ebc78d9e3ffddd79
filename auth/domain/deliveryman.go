package domain

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleDeliveryman Role = "deliveryman"
)

// Deliveryman é o registro do entregador mantido pelo serviço de cadastro,
// do outro lado da fila. PasswordHash é o hash bcrypt da senha.
type Deliveryman struct {
	ID           string    `json:"id"`
	CPF          string    `json:"cpf"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"password"`
	Active       bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

const ActionFindDeliverymanByCPF = "FIND_DELIVERYMAN_BY_CPF"

// LookupRequest é o envelope publicado na fila de requisição.
// Imutável depois de enviado.
type LookupRequest struct {
	Action        string `json:"action"`
	CorrelationID string `json:"correlationId"`
	CPF           string `json:"cpf"`
}

type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
)

// LookupResponse é o envelope consumido da fila de resposta.
// Record vem cru para que o motor consiga separar "não dá para saber de quem é"
// de "é meu, mas o registro está corrompido".
type LookupResponse struct {
	CorrelationID string          `json:"correlationId"`
	Outcome       Outcome         `json:"outcome"`
	Record        json.RawMessage `json:"record,omitempty"`
}

// LookupReply é o resultado de uma chamada correlacionada bem-sucedida.
// Found=false significa que o cadastro respondeu "not_found".
type LookupReply struct {
	CorrelationID string
	Found         bool
	Record        *Deliveryman
}

type EventType string

const (
	EventUserAuthenticated EventType = "USER_AUTHENTICATED"
	EventUserCreated       EventType = "USER_CREATED"
	EventUserUpdated       EventType = "USER_UPDATED"
)

// AuthEvent é publicado (fire-and-forget) na fila de eventos de autenticação.
// Timestamp é ISO-8601 em UTC.
type AuthEvent struct {
	EventType EventType `json:"eventType"`
	UserID    string    `json:"userId"`
	CPF       string    `json:"cpf"`
	Role      Role      `json:"role"`
	Timestamp string    `json:"timestamp"`
}

// ISOTimestamp formata t como o toISOString do JavaScript (milissegundos, Z).
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Claims são as informações assinadas no token de acesso.
type Claims struct {
	Subject   string
	CPF       string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Subject struct {
	ID   string `json:"id"`
	CPF  string `json:"cpf"`
	Role Role   `json:"role"`
}

type LoginResult struct {
	Token   string
	Subject Subject
}
