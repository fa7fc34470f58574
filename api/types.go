package api

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	projectHandler projectHandler
	healthHandler  healthHandler
}

// ErrorResponse is the body of every non-2xx JSON response
// @Description Error response structure
type ErrorResponse struct {
	Error   string `json:"error" example:"project not found"`
	Status  string `json:"status" example:"error"`
	Field   string `json:"field,omitempty" example:"title"`
	Details string `json:"details,omitempty" example:"Missing required fields: title"`
}
