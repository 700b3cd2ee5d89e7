package httpkit

import (
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated operator behind a request.
type Identity interface {
	UserID() uuid.UUID
	HasRole(role string) bool
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	roles         []string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID        { return i.userID }
func (i *identity) HasRole(role string) bool { return slices.Contains(i.roles, role) }
func (i *identity) IsAuthenticated() bool    { return i.authenticated }

// GetIdentity extracts the Identity set by AuthRequired.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &identity{}
	}
	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	var roles []string
	if raw, ok := c.Get(ContextRolesKey); ok {
		roles, _ = raw.([]string)
	}
	return &identity{userID: uid, roles: roles, authenticated: true}
}
