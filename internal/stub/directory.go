// Package stub faz o papel do cadastro de entregadores em desenvolvimento:
// consome a fila de requisição, procura o CPF num diretório em memória e
// responde na fila de resposta com o mesmo correlationId.
package stub

import (
	"sync"

	"deliveryman-auth/auth/domain"
)

// Directory guarda registros indexados pelo CPF só com dígitos.
type Directory struct {
	mu   sync.RWMutex
	byID map[string]domain.Deliveryman
}

func NewDirectory(recs ...domain.Deliveryman) *Directory {
	d := &Directory{byID: make(map[string]domain.Deliveryman, len(recs))}
	for _, rec := range recs {
		d.Put(rec)
	}
	return d
}

// Put insere ou substitui o registro. Registros com CPF inválido são ignorados.
func (d *Directory) Put(rec domain.Deliveryman) bool {
	digits, err := domain.NormalizeCPF(rec.CPF)
	if err != nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[digits] = rec
	return true
}

// Find aceita o CPF com ou sem máscara.
func (d *Directory) Find(cpf string) (domain.Deliveryman, bool) {
	digits, err := domain.NormalizeCPF(cpf)
	if err != nil {
		return domain.Deliveryman{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byID[digits]
	return rec, ok
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
