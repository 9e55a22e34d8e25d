// Package http exposes the gateway's JSON contracts over gin:
//
//	GET  /api/sei/auth/challenge  fresh cookies, hidden fields and captcha
//	POST /api/sei/processos       login with a challenge, list cases
//	POST /api/sei/detalhes        document tree and history of one case
//
// Handlers are stateless: every call carries its own session material and
// nothing is kept between requests.
package http
