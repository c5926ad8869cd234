package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PauseRequest struct {
	Paused bool `json:"paused"`
}

type RoleRequest struct {
	Account string `json:"account"`
	Role    string `json:"role"`
}
