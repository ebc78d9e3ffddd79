package infra

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost é o custo usado pelo cadastro ao gerar os hashes.
const DefaultBcryptCost = 10

// BcryptHasher implementa domain.PasswordVerifier e domain.PasswordHasher.
type BcryptHasher struct {
	Cost int
}

// Compare trata qualquer erro (hash malformado, senha errada) como falso.
func (h BcryptHasher) Compare(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

func (h BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
