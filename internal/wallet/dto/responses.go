package dto

type AccountResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
	Exists  bool   `json:"exists"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
