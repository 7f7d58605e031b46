package models

// PortalRequest is the optional body accepted by the billing portal proxy
type PortalRequest struct {
	ReturnURL string `json:"returnUrl,omitempty"`
}

// PortalResult is the success body of the billing portal proxy
type PortalResult struct {
	URL string `json:"url"`
}

// ErrorResponse is the body of every failure this service produces itself
type ErrorResponse struct {
	Error string `json:"error"`
}
