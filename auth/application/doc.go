// Package application contém os casos de uso da autenticação de entregadores.
//
// Depende apenas do pacote domain e não conhece net/http, SQS nem Redis.
//
//   - RequestReply: transforma a fila assíncrona (at-least-once, sem ordem) em uma
//     chamada síncrona correlacionada com prazo.
//   - EventEmitter: publica eventos de autenticação (fire-and-forget).
//   - Authenticator: orquestra o login (busca no cadastro, senha, token, evento).
//   - Throttle / Admission: decisão de rate limit e aquisição de vaga com timeout.
package application
