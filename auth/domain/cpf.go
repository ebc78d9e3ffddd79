package domain

import "strings"

// NormalizeCPF remove máscara e espaços e exige exatamente 11 dígitos.
// Não valida dígitos verificadores; isso é papel do cadastro.
func NormalizeCPF(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == ' ':
		default:
			return "", ErrInvalidCPF
		}
	}
	digits := b.String()
	if len(digits) != 11 {
		return "", ErrInvalidCPF
	}
	return digits, nil
}

// FormatCPF aplica a máscara 000.000.000-00 a um CPF já normalizado.
// Valores que não têm 11 dígitos são devolvidos como vieram.
func FormatCPF(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:11]
}
