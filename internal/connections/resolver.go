// internal/connections/resolver.go

package connections

import (
	"github.com/imadgeboyega/kiekky-client/internal/api"
)

// RelationshipState is the local user's relationship with one counterpart
type RelationshipState string

const (
	StateNone                RelationshipState = "none"
	StateAlreadyFriend       RelationshipState = "alreadyFriend"
	StatePendingSentByMe     RelationshipState = "pendingSentByMe"
	StatePendingReceivedByMe RelationshipState = "pendingReceivedByMe"
)

// Resolve derives the relationship with targetUserID from the three server
// lists. Checks run in a fixed precedence so exactly one state holds.
func Resolve(targetUserID int64, sent, received, approved []api.ConnectionRequest) RelationshipState {
	if _, ok := findApproved(approved, targetUserID); ok {
		return StateAlreadyFriend
	}
	if _, ok := findPending(sent, targetUserID); ok {
		return StatePendingSentByMe
	}
	if _, ok := findPending(received, targetUserID); ok {
		return StatePendingReceivedByMe
	}
	return StateNone
}

// findPending returns the non-terminal request involving target. Entries
// without a status are pending by virtue of being in a pending list.
func findPending(list []api.ConnectionRequest, target int64) (api.ConnectionRequest, bool) {
	for _, req := range list {
		if !req.Involves(target) {
			continue
		}
		if !req.Status.IsTerminal() {
			return req, true
		}
	}
	return api.ConnectionRequest{}, false
}

func findApproved(list []api.ConnectionRequest, target int64) (api.ConnectionRequest, bool) {
	for _, req := range list {
		if !req.Involves(target) {
			continue
		}
		if req.Status == "" || req.Status == api.StatusApproved {
			return req, true
		}
	}
	return api.ConnectionRequest{}, false
}
