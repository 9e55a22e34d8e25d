package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

// Fixed messages for failures that carry no Portal text.
const (
	msgInvalidJSON     = "JSON inválido."
	msgMissingIdentity = "Usuário e senha são obrigatórios."
	msgMissingLink     = "Link do processo é obrigatório."
	msgDetailFailed    = "Erro ao buscar detalhes."
	msgChallengeFailed = "Erro ao carregar o desafio de login."
	msgProcessesFailed = "Erro ao buscar processos."
)

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		terr *portal.TransportError
		eerr *portal.EncodingError
	)
	switch {
	case errors.Is(err, portal.ErrMissingLink):
		return http.StatusBadRequest
	case portal.IsAuthRejected(err):
		return http.StatusUnauthorized
	case errors.As(err, &terr):
		if terr.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &eerr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// outcome is the metrics label for an engine result.
func outcome(err error) string {
	switch status := statusFor(err); {
	case err == nil:
		return "success"
	case status == http.StatusUnauthorized:
		return "rejected"
	case status == http.StatusGatewayTimeout:
		return "timeout"
	case status == http.StatusBadGateway:
		return "upstream_error"
	case status == http.StatusBadRequest:
		return "bad_request"
	default:
		return "error"
	}
}

// respondError writes {error} for an engine failure. Rejections carry the
// Portal's text unchanged.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)

	message := err.Error()
	switch status {
	case http.StatusBadRequest:
		message = msgMissingLink
	case http.StatusInternalServerError:
		message = fallback
	}

	c.JSON(status, gin.H{"error": message})
}
