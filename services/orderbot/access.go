package orderbot

import "slices"

// AccessPolicy is the allow-list of requesters and group chats. Loaded
// once at startup and immutable afterwards; every entry point checks it
// before doing anything with a side effect.
type AccessPolicy struct {
	Users []int64 `json:"users"`
	Chats []int64 `json:"chats"`
}

func (p AccessPolicy) Allowed(userID, chatID int64) bool {
	return slices.Contains(p.Users, userID) || slices.Contains(p.Chats, chatID)
}
