package handler

import (
	"net/http"
)

// Endpoint describes one public route.
type Endpoint struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Description string            `json:"description"`
	Auth        string            `json:"auth"`
	Body        map[string]string `json:"body,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
}

// APIDocs is the route catalogue served at /docs.
type APIDocs struct {
	Title          string     `json:"title"`
	Version        string     `json:"version"`
	Description    string     `json:"description"`
	Endpoints      []Endpoint `json:"endpoints"`
	Authentication string     `json:"authentication"`
}

var catalogue = APIDocs{
	Title:       "EMS Backend API",
	Version:     "1.0.0",
	Description: "Employee Management System API",
	Endpoints: []Endpoint{
		{Method: "GET", Path: "/api/health", Description: "Health check", Auth: "none"},
		{Method: "POST", Path: "/api/auth/login", Description: "User login", Auth: "none",
			Body: map[string]string{"email": "string", "password": "string"}},
		{Method: "POST", Path: "/api/auth/first-time-login", Description: "Replace the temporary password and start onboarding", Auth: "none",
			Body: map[string]string{"email": "string", "tempPassword": "string", "newPassword": "string (min 8)"}},
		{Method: "POST", Path: "/api/auth/logout", Description: "Revoke the current token", Auth: "bearer"},
		{Method: "POST", Path: "/api/admin/invite-employee", Description: "Invite an employee; returns the temporary password", Auth: "ADMIN, HR",
			Body: map[string]string{"email": "string", "name": "string (min 2)"}},
		{Method: "GET", Path: "/api/admin/pending-approvals", Description: "Submitted onboardings awaiting review", Auth: "ADMIN, HR"},
		{Method: "PUT", Path: "/api/admin/approve-employee/{id}", Description: "Approve or reject a submitted onboarding", Auth: "ADMIN, HR",
			Body: map[string]string{"approved": "boolean", "notes": "string?", "rejectionReason": "string (required when rejecting)"}},
		{Method: "GET", Path: "/api/admin/invitations", Description: "All invitations, newest first", Auth: "ADMIN, HR"},
		{Method: "PUT", Path: "/api/employee/complete-profile", Description: "Create or update the caller's profile", Auth: "bearer"},
		{Method: "POST", Path: "/api/employee/upload-document", Description: "Upload a document (field document, form field type)", Auth: "bearer",
			ContentType: "multipart/form-data"},
		{Method: "POST", Path: "/api/employee/submit-onboarding", Description: "Submit onboarding for review", Auth: "bearer"},
		{Method: "GET", Path: "/api/employee/profile", Description: "User, profile, documents and onboarding", Auth: "bearer"},
		{Method: "GET", Path: "/api/employee/documents", Description: "The caller's documents, newest first", Auth: "bearer"},
		{Method: "GET", Path: "/api/uploads/documents/{name}", Description: "Download a stored document", Auth: "owner, ADMIN, HR"},
	},
	Authentication: "Include Authorization header: Bearer <token>",
}

// Docs handles GET /docs
func Docs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogue)
}
