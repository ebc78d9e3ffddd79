package infra

import "github.com/google/uuid"

// UUIDGenerator gera correlationIds UUIDv4.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }
