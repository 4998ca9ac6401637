// Package dto provides shared data transfer objects for the control surface's
// HTTP responses.
package dto

// ErrorResponse is the JSON body returned for any non-2xx control surface
// response.
type ErrorResponse struct {
	Error string `json:"error"`
}
