package huddle

import (
	"context"
	"fmt"
)

// onUserConnect marks the user online and tells everyone else. The joiner
// does not receive its own presence event; it learns the roster from
// onConnectionOpen.
func (app *App) onUserConnect(ctx context.Context, username string) {
	app.presence.SetOnline(username)
	app.eventRouter.EmitExcept(OnlineEvent, PresenceEventPayload{
		Username: username,
		Status:   app.presence.Status(username),
	}, username)
}

// onConnectionOpen resynchronizes a newly opened connection: it alone
// receives the full message history and the online roster.
func (app *App) onConnectionOpen(ctx context.Context, username string, id int) {
	snapshot, err := app.history.Snapshot(ctx)
	if err != nil {
		app.logger.Error(fmt.Sprintf("Snapshot: %v", err))
		return
	}
	app.eventRouter.EmitToConn(HistoryEvent, snapshot, username, id)
	app.eventRouter.EmitToConn(RosterEvent, RosterEventPayload{
		Online: app.presence.Online(),
	}, username, id)
}

// onUserDisconnect marks the user offline and clears any typing indicator
// they left behind. Both updates go to everyone that is still connected.
func (app *App) onUserDisconnect(ctx context.Context, username string) {
	app.presence.SetOffline(username)
	app.typing.Clear(username)
	app.eventRouter.Emit(OfflineEvent, PresenceEventPayload{
		Username: username,
		Status:   app.presence.Status(username),
	})
	app.eventRouter.Emit(StopTypingEvent, TypingEventPayload{Username: username})
}
