package core

import "slices"

// PresenceStatus is the presence state of a user.
type PresenceStatus string

const (
	Online  PresenceStatus = "online"
	Offline PresenceStatus = "offline"
)

// PresenceRegistry tracks username to presence status. An entry is created on
// the user's first join and is never removed; users that disconnected stay
// in the registry as offline.
type PresenceRegistry struct {
	statuses *SyncMap[string, PresenceStatus]
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		statuses: NewSyncMap[string, PresenceStatus](),
	}
}

func (r *PresenceRegistry) SetOnline(username string) {
	r.statuses.Store(username, Online)
}

func (r *PresenceRegistry) SetOffline(username string) {
	r.statuses.Store(username, Offline)
}

// Status returns the recorded status of the user. A user that never joined is
// reported offline.
func (r *PresenceRegistry) Status(username string) PresenceStatus {
	status, ok := r.statuses.Load(username)
	if !ok {
		return Offline
	}
	return status
}

// Online returns the sorted usernames that are currently online.
func (r *PresenceRegistry) Online() []string {
	var online []string
	r.statuses.RRange(func(username string, status PresenceStatus) bool {
		if status == Online {
			online = append(online, username)
		}
		return true
	})
	slices.Sort(online)
	return online
}
