package infra

import (
	"context"
	"sync"
)

// SlotPool limita quantos logins esperam resposta do cadastro ao mesmo tempo.
// Cada espera segura uma vaga até o motor devolver a resposta ou o prazo vencer.
type SlotPool struct {
	slots chan struct{}
}

func NewSlotPool(size int) *SlotPool {
	return &SlotPool{slots: make(chan struct{}, size)}
}

// Acquire implementa domain.SlotPool. O release devolvido pode ser chamado
// mais de uma vez; só a primeira chamada libera a vaga.
func (p *SlotPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(func() { <-p.slots }) }, true
}

// InUse devolve quantas vagas estão ocupadas agora.
func (p *SlotPool) InUse() int { return len(p.slots) }

func (p *SlotPool) Size() int { return cap(p.slots) }
