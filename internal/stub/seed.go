package stub

import (
	"errors"
	"fmt"
	"io"
	"time"

	"deliveryman-auth/auth/domain"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Arquivo de seed:
//
//	deliverymen:
//	  - cpf: "123.456.789-01"
//	    name: João Silva
//	    password: "123456"        # texto puro, vira bcrypt ao carregar
//	  - cpf: "987.654.321-00"
//	    name: Maria
//	    passwordHash: "$2a$10$..."
//	    active: false
type seedFile struct {
	Deliverymen []seedEntry `yaml:"deliverymen"`
}

type seedEntry struct {
	ID           string `yaml:"id"`
	CPF          string `yaml:"cpf"`
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"passwordHash"`
	// Active ausente vale true.
	Active *bool `yaml:"active"`
}

// LoadSeed lê o YAML e monta o diretório. Senhas em texto puro passam pelo hasher.
func LoadSeed(r io.Reader, hasher domain.PasswordHasher) (*Directory, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	now := time.Now().UTC()
	dir := NewDirectory()
	for i, e := range f.Deliverymen {
		digits, err := domain.NormalizeCPF(e.CPF)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}

		hash := e.PasswordHash
		if hash == "" && e.Password != "" {
			if hasher == nil {
				return nil, fmt.Errorf("seed entry %d: plain password needs a hasher", i)
			}
			if hash, err = hasher.Hash(e.Password); err != nil {
				return nil, fmt.Errorf("seed entry %d: hash password: %w", i, err)
			}
		}

		rec := domain.Deliveryman{
			ID:           e.ID,
			CPF:          domain.FormatCPF(digits),
			Name:         e.Name,
			Email:        e.Email,
			PasswordHash: hash,
			Active:       e.Active == nil || *e.Active,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		dir.Put(rec)
	}
	return dir, nil
}
