package app

import (
	"errors"
	"fmt"
	"net/http"

	"authorsite/api/internal/contact"
	"authorsite/api/internal/content"
	"authorsite/api/internal/imagenorm"
	"authorsite/api/internal/media"
	"authorsite/api/internal/newsletter"
	"authorsite/api/internal/site"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// mapError translates service errors into HTTP responses. Anything unknown is a 500
// whose details are the error text.
func mapError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var validation *content.ValidationError
	if errors.As(err, &validation) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_FAILED", "El contenido no es válido", validation.Problems)
	}
	var capacity *content.CapacityError
	if errors.As(err, &capacity) {
		return domainError(http.StatusRequestEntityTooLarge, "CAPACITY_EXCEEDED", capacity.Error(), map[string]any{
			"sizeInMB":  content.SizeInMB(capacity.Size),
			"limitInMB": content.SizeInMB(capacity.Limit),
		})
	}
	var storage *content.StorageError
	if errors.As(err, &storage) {
		return domainError(http.StatusInsufficientStorage, "STORAGE_FAILED", storage.Message, errorText(storage.Err))
	}
	var contactErr *contact.ValidationError
	if errors.As(err, &contactErr) {
		return domainError(http.StatusBadRequest, "VALIDATION_FAILED", "El mensaje no es válido", contactErr.Problems)
	}

	switch {
	case errors.Is(err, contact.ErrNotFound), errors.Is(err, newsletter.ErrNotFound):
		return domainError(http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, contact.ErrInvalidStatus):
		return domainError(http.StatusBadRequest, "INVALID_STATUS", err.Error(), nil)
	case errors.Is(err, contact.ErrInvalidTransition):
		return domainError(http.StatusConflict, "INVALID_TRANSITION", contact.ErrInvalidTransition.Error(), err.Error())
	case errors.Is(err, newsletter.ErrEmailRequired), errors.Is(err, newsletter.ErrInvalidEmail):
		return domainError(http.StatusBadRequest, "INVALID_EMAIL", err.Error(), nil)
	case errors.Is(err, newsletter.ErrAlreadySubscribed):
		return domainError(http.StatusConflict, "ALREADY_SUBSCRIBED", err.Error(), nil)
	case errors.Is(err, imagenorm.ErrDecode):
		return domainError(http.StatusBadRequest, "INVALID_IMAGE", err.Error(), nil)
	case errors.Is(err, media.ErrTooLarge):
		return domainError(http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", err.Error(), nil)
	case errors.Is(err, site.ErrStopped):
		return domainError(http.StatusServiceUnavailable, "UNAVAILABLE", "El servicio no está disponible", nil)
	}
	return domainError(http.StatusInternalServerError, "INTERNAL", "Error al procesar la solicitud", err.Error())
}

func errorText(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
