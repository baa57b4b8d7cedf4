package roles

import (
	"github.com/google/uuid"

	"github.com/semsearch/semsearch/internal/rbac"
)

// Role is a named permission set stored in the database. Built-in roles are
// mirrored here so they can be listed and assigned like custom ones.
type Role struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Permissions []rbac.Action `json:"permissions"`
}
