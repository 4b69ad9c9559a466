package client

import (
	"errors"

	"github.com/openai/openai-go"
)

// StatusCode reports the HTTP status the completion endpoint answered with,
// when err carries one.
func StatusCode(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
