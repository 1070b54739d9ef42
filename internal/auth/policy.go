package auth

import "github.com/adityaraj-09/faff-assign/internal/models"

type Action string

const (
	ActionCreateTask       Action = "task:create"
	ActionUpdateTask       Action = "task:update"
	ActionDeleteTask       Action = "task:delete"
	ActionCreateMessage    Action = "message:create"
	ActionEditMessage      Action = "message:edit"
	ActionDeleteMessage    Action = "message:delete"
	ActionRemoveAttachment Action = "attachment:remove"
	ActionRequestReview    Action = "review:request"
	ActionDecideReview     Action = "review:decide"
)

// Resource cukup membawa owner; semua aturan di bawah hanya butuh itu.
type Resource struct {
	OwnerID uint
}

func Owned(ownerID uint) Resource { return Resource{OwnerID: ownerID} }

type rule func(actor Identity, res Resource) bool

func anyone(Identity, Resource) bool { return true }

func ownerOnly(actor Identity, res Resource) bool {
	return res.OwnerID != 0 && actor.UserID == res.OwnerID
}

func ownerOrAdmin(actor Identity, res Resource) bool {
	return ownerOnly(actor, res) || actor.Role == models.RoleAdmin
}

func adminOnly(actor Identity, _ Resource) bool {
	return actor.Role == models.RoleAdmin
}

var policy = map[Action]rule{
	ActionCreateTask:       anyone,
	ActionUpdateTask:       anyone,
	ActionDeleteTask:       adminOnly,
	ActionCreateMessage:    anyone,
	ActionEditMessage:      ownerOnly,
	ActionDeleteMessage:    ownerOrAdmin,
	ActionRemoveAttachment: ownerOnly,
	ActionRequestReview:    anyone,
	ActionDecideReview:     adminOnly,
}

// Can adalah satu-satunya tempat pengecekan role/permission.
// Action yang tidak dikenal selalu ditolak.
func Can(actor Identity, action Action, res Resource) bool {
	if actor.UserID == 0 {
		return false
	}
	r, ok := policy[action]
	if !ok {
		return false
	}
	return r(actor, res)
}
