// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SQSQueue / RedisQueue / MemoryQueue: transportes de fila (domain.Queue)
//   - BcryptHasher: verificação de senha com golang.org/x/crypto/bcrypt
//   - JWTIssuer: emissão e validação de tokens HS256 (golang-jwt)
//   - LimiterStore: token bucket por cliente usando golang.org/x/time/rate
//   - SlotPool: semáforo para limite de logins simultâneos
//   - MemoryLoginStats / RedisLoginStats: contadores de tentativas de login
package infra
