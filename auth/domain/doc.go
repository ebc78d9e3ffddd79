// Package domain define contratos e tipos de domínio da autenticação de entregadores.
//
// Este pacote não depende de net/http, SQS, Redis nem de implementações concretas.
// Aqui ficam os envelopes trocados pela fila, o registro do entregador, os eventos
// de autenticação, os erros sentinela e as interfaces (portas) implementadas em infra.
package domain
