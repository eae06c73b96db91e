package models

import (
	"github.com/google/uuid"
)

// DataClassification is the sensitivity tier of the data a request
// touches. PHI is the highest tier and always forces auditing.
type DataClassification string

const (
	ClassificationPublic       DataClassification = "public"
	ClassificationInternal     DataClassification = "internal"
	ClassificationConfidential DataClassification = "confidential"
	ClassificationPHI          DataClassification = "phi"
)

// Resource types the engine scopes by attribute rules.
const (
	ResourceClient = "client"
	ResourceShift  = "shift"
)

// UserContext is the request-scoped identity the engine evaluates.
// It is assembled once per authenticated request from the user row,
// the role permission table, and the user's active attributes. It is
// never persisted.
type UserContext struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           Role
	Permissions    PermissionSet
	Attributes     []UserAttribute

	SessionID string
	IPAddress string
	UserAgent string
}

// HasPermission reports whether the role baseline includes the permission.
func (u *UserContext) HasPermission(p Permission) bool {
	return u.Permissions.Has(p)
}

// ResourceRef identifies the target of an access request.
type ResourceRef struct {
	Type       string            `json:"type"`
	ID         *uuid.UUID        `json:"id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attribute returns a resource attribute value, or "" when absent.
func (r ResourceRef) Attribute(key string) string {
	if r.Attributes == nil {
		return ""
	}
	return r.Attributes[key]
}

// RequestContext carries the sensitivity and purpose of the request.
type RequestContext struct {
	DataClassification DataClassification `json:"data_classification"`
	Purpose            string             `json:"purpose,omitempty"`
}

// AccessRequest is the action being attempted, built fresh per call.
type AccessRequest struct {
	Action   Permission     `json:"action"`
	Resource ResourceRef    `json:"resource"`
	Context  RequestContext `json:"context"`
}

// Classification returns the request classification, defaulting to
// INTERNAL when the caller did not set one.
func (r *AccessRequest) Classification() DataClassification {
	if r.Context.DataClassification == "" {
		return ClassificationInternal
	}
	return r.Context.DataClassification
}

// AccessDecision is the immutable output of an evaluation. Callers may
// log it or act on it but must not mutate it.
type AccessDecision struct {
	Allowed            bool               `json:"allowed"`
	Reason             string             `json:"reason"`
	Conditions         []string           `json:"conditions,omitempty"`
	AuditRequired      bool               `json:"audit_required"`
	DataClassification DataClassification `json:"data_classification"`
}
