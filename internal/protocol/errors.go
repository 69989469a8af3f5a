package protocol

const (
	// Protocol/transport validation.
	ErrBadRequest = "E_BAD_REQUEST"

	// Session/state layer.
	ErrConflict  = "E_CONFLICT"
	ErrRateLimit = "E_RATE_LIMIT"
	// ErrBusy means the server could not take the request now; the client may retry.
	ErrBusy = "E_BUSY"
)

// ErrorMsg is the payload of an "error" event sent to the offending client only.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
