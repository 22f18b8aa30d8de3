package streamchat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	stream "github.com/GetStream/stream-chat-go/v7"
	"github.com/lalith-99/mehfil/internal/chat"
)

// codeDoesNotExist is Stream's API error code for a missing resource.
const codeDoesNotExist = 16

// classify wraps err with chat.ErrNotFound when Stream reported the target
// as missing. Other errors pass through unchanged.
func classify(err error) error {
	if err == nil || !isNotFound(err) {
		return err
	}
	return fmt.Errorf("%w: %w", chat.ErrNotFound, err)
}

func isNotFound(err error) bool {
	var apiErr stream.Error
	if errors.As(err, &apiErr) {
		return apiNotFound(apiErr)
	}
	var apiErrPtr *stream.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiNotFound(*apiErrPtr)
	}
	return false
}

func apiNotFound(e stream.Error) bool {
	return e.StatusCode == http.StatusNotFound ||
		e.Code == codeDoesNotExist ||
		strings.Contains(strings.ToLower(e.Message), "does not exist")
}
