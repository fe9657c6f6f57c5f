package http

import (
	"errors"
	"net/http"

	"gota/internal/core"
	"gota/internal/log"
	"gota/internal/services"
)

// User-facing messages (es-AR). Internal detail never reaches the client.
const (
	msgValidation      = "Revisá los datos ingresados"
	msgUnauthorized    = "Iniciá sesión para continuar"
	msgBadCredentials  = "Email o contraseña incorrectos"
	msgNotFound        = "No encontramos lo que buscabas"
	msgDuplicate       = "Parece que ya cargaste este gasto. Confirmá para guardarlo igual."
	msgDailyLimit      = "Llegaste al límite de gastos por hoy. Probá de nuevo mañana."
	msgRateLimit       = "Demasiadas solicitudes. Probá de nuevo en un minuto."
	msgUpstream        = "No pudimos completar la operación. Probá de nuevo en unos minutos."
	msgInternal        = "Ocurrió un error inesperado. Probá de nuevo."
	msgBadJSON         = "El cuerpo de la solicitud no es JSON válido"
	msgAuthDeletion    = "Borramos tus datos pero no pudimos eliminar tu usuario. Escribinos para terminar la baja."
	msgParserOffline   = "El asistente no está disponible en este momento. Cargá el gasto a mano."
	msgEmptyParseInput = "Escribí el gasto que querés cargar"
)

// errorResponse maps a service error to a status and a safe message.
func errorResponse(err error) *ResponseBuilder {
	var (
		verr *core.ValidationError
		dup  *services.DuplicateWarning
		uerr *core.UpstreamError
	)
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return UnauthorizedError()
	case errors.As(err, &verr):
		return ValidationErrorResponse(verr)
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError()
	case errors.As(err, &dup):
		return NewResponse().Status(http.StatusConflict).JSON(errorBody{
			Error:   msgDuplicate,
			DraftID: dup.DraftID,
			Matches: dup.Matches,
		})
	case errors.Is(err, core.ErrDailyLimitReached):
		return ErrorResponse(http.StatusTooManyRequests, msgDailyLimit)
	case errors.Is(err, services.ErrAuthDeletion):
		return ErrorResponse(http.StatusInternalServerError, msgAuthDeletion)
	case errors.Is(err, services.ErrClassifierUnavailable):
		return ErrorResponse(http.StatusServiceUnavailable, msgParserOffline)
	case errors.As(err, &uerr):
		return ErrorResponse(http.StatusBadGateway, msgUpstream)
	default:
		return InternalServerError()
	}
}

// writeError answers with the mapped error. Server-side failures are logged
// here once; services already log the upstream detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	if resp.statusCode >= http.StatusInternalServerError {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldStatusCode, resp.statusCode,
			log.FieldError, err.Error(),
		)
	}
	resp.Write(w)
}
