package transport

// LocationPayload mirrors the owned location sub-entity. Non-numeric
// coordinates fail JSON decoding and are rejected as an invalid payload
// before anything is stored.
type LocationPayload struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius float64 `json:"radius"`
}

type ActionPayload struct {
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

type TaskCreateRequest struct {
	Name        string           `json:"name"`
	Cost        int64            `json:"cost"`
	Answers     int              `json:"answers"`
	ExpiresAt   string           `json:"expires_at"`
	RefreshRate int              `json:"refresh_rate"`
	Location    *LocationPayload `json:"location"`
	Actions     []ActionPayload  `json:"actions"`
}

type AnswerPayload struct {
	ActionID string `json:"action_id"`
	Value    string `json:"value"`
}

type RespondRequest struct {
	Answers []AnswerPayload `json:"answers"`
}

type ProfileUpdateRequest struct {
	NotifyURL string `json:"notify_url"`
}
