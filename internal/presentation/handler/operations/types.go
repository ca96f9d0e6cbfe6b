package operations

import "encoding/json"

type createOrganizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type createUserRequest struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
}

type createStoreRequest struct {
	Name        string `json:"name"`
	OwnerID     string `json:"ownerId"`
	Description string `json:"description,omitempty"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

type replyResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}
