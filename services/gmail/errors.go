package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	internalerrors "github.com/customeros/mailsync/internal/errors"
)

// mapError translates transport errors into the sync error vocabulary.
// notFound is returned for 404 responses, it depends on what was requested.
func mapError(err error, notFound error, operation string) error {
	if err == nil {
		return nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: %v", internalerrors.ErrAuth, operation, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %v", internalerrors.ErrAuth, operation, err)
		case http.StatusNotFound:
			if notFound != nil {
				return fmt.Errorf("%w: %s: %v", notFound, operation, err)
			}
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s: %v", internalerrors.ErrRemoteValidation, operation, err)
		}
	}

	return fmt.Errorf("failed to %s: %w", operation, err)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
