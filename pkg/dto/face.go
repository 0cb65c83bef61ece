package dto

// RegisterFaceResponse is returned by POST /register on the face service.
type RegisterFaceResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Identity string `json:"identity"`
}

// VerifyFaceResponse is returned by POST /verify on the face service.
// Assertion is present only when the face matched; the API service
// exchanges it for a session at /users/face-login.
type VerifyFaceResponse struct {
	Success    bool    `json:"success"`
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Identity   string  `json:"identity,omitempty"`
	Message    string  `json:"message"`
	Assertion  string  `json:"assertion,omitempty"`
}

// WSMessage is pushed to admin dashboards over the WebSocket feed.
type WSMessage struct {
	Type       string  `json:"type"` // face_enrolled, face_verified, face_rejected
	Identity   string  `json:"identity"`
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	OccurredAt string  `json:"occurredAt"`
}
