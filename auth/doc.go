// Package auth expõe o serviço de autenticação de entregadores em HTTP (net/http).
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (sem net/http): registro, envelopes, eventos, erros
//   - application: motor de request/reply, orquestrador de login, emissor de eventos
//   - infra: filas (SQS, Redis, memória), bcrypt, JWT, token bucket, contadores
//   - auth (este pacote): handlers, middlewares e tradução para status/headers
//
// Fluxo do POST /auth/login:
//
//  1. CORS e extração da chave do cliente (IP/header/XFF)
//  2. Limite de tentativas por cliente (429) e de logins simultâneos (503)
//  3. Validação do corpo (400)
//  4. Authenticator.Login: 200 com token, 401 "Credenciais inválidas" ou 500
//
// Variáveis de ambiente do binário (cmd/auth-service) controlam o comportamento,
// como RATE_RPS, RATE_BURST, CONCURRENCY_MAX e DELIVERYMAN_CALL_TIMEOUT.
package auth
