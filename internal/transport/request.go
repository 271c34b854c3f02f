package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/espace/zotsync/pkg/errors"
)

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

// Success reports whether the status code is 2xx.
func Success(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// DecodeResponse decodes a JSON response into the target structure.
// A non-2xx status becomes an APIError carrying the response body.
func DecodeResponse(resp *http.Response, backend string, target any) error {
	defer Drain(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if !Success(resp) {
		return responseError(resp, backend, body)
	}
	if target == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}

	return nil
}

// CheckResponse returns an APIError for a non-2xx status and discards the body.
func CheckResponse(resp *http.Response, backend string) error {
	defer Drain(resp)
	if Success(resp) {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return responseError(resp, backend, body)
}

// Drain consumes and closes the body so the connection can be reused.
func Drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func responseError(resp *http.Response, backend string, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	e := errors.NewAPIError(backend, resp.StatusCode, msg)
	if resp.Request != nil && resp.Request.URL != nil {
		e.Endpoint = resp.Request.Method + " " + resp.Request.URL.Path
	}
	return e
}
