package security

import (
	"fmt"
	"log/slog"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermInviteEmployee   Permission = "invite_employee"
	PermListInvitations  Permission = "list_invitations"
	PermReviewOnboarding Permission = "review_onboarding"
	PermReadAnyDocument  Permission = "read_any_document"
	PermManageOwnProfile Permission = "manage_own_profile"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermInviteEmployee,
		PermListInvitations,
		PermReviewOnboarding,
		PermReadAnyDocument,
		PermManageOwnProfile,
	},
	domain.RoleHR: {
		PermInviteEmployee,
		PermListInvitations,
		PermReviewOnboarding,
		PermReadAnyDocument,
		PermManageOwnProfile,
	},
	domain.RoleEmployee: {
		PermManageOwnProfile,
	},
}

// ResourceType identifies the kind of resource being accessed
type ResourceType string

const (
	ResourceDocument ResourceType = "document"
	ResourceProfile  ResourceType = "profile"
)

// ResourcePermission describes access to a specific owned resource
type ResourcePermission struct {
	ResourceType ResourceType
	ResourceID   string
	OwnerID      string
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return apperror.ErrForbidden.WithMessage(fmt.Sprintf("%s role cannot %s", role, permission))
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}

// ValidateResourceAccess allows the owner, and roles that may read any
// document, to access a resource.
func (as *AuthorizationService) ValidateResourceAccess(userID string, role domain.Role, perm ResourcePermission) error {
	if as.HasPermission(role, PermReadAnyDocument) {
		return nil
	}

	if perm.OwnerID != userID {
		as.logger.Warn("resource access denied",
			slog.String("user_id", userID),
			slog.String("resource_id", perm.ResourceID),
			slog.String("resource_type", string(perm.ResourceType)),
			slog.String("owner_id", perm.OwnerID),
		)
		return apperror.ErrForbidden.WithMessage(fmt.Sprintf("you do not own this %s", perm.ResourceType))
	}
	return nil
}
