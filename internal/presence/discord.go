package presence

import (
	"log/slog"
	"strings"
	"sync"

	discord_client "github.com/hugolgst/rich-go/client"
)

// DiscordSink publishes payloads as a Discord Rich Presence activity. It
// connects to the local Discord client on the first update and disconnects
// when the presence is cleared.
type DiscordSink struct {
	appID  string
	logger *slog.Logger

	login       func(clientID string) error
	setActivity func(discord_client.Activity) error
	logout      func()

	mu       sync.Mutex
	loggedIn bool
}

// NewDiscordSink returns a sink for the Discord application appID.
func NewDiscordSink(appID string) *DiscordSink {
	return &DiscordSink{
		appID:       appID,
		logger:      slog.Default().With("component", "discord"),
		login:       discord_client.Login,
		setActivity: discord_client.SetActivity,
		logout:      discord_client.Logout,
	}
}

// SetPresence implements Sink.
func (d *DiscordSink) SetPresence(p Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loggedIn {
		if err := d.login(d.appID); err != nil {
			return err
		}
		d.loggedIn = true
		d.logger.Info("Successfully logged into Discord")
	}

	activity := discord_client.Activity{
		State:      p.State,
		Details:    strings.TrimSpace(p.Details),
		LargeImage: p.LargeImageKey,
		LargeText:  strings.TrimSpace(p.LargeImageText),
	}
	if p.Start != nil {
		start := *p.Start
		activity.Timestamps = &discord_client.Timestamps{Start: &start}
	}

	if err := d.setActivity(activity); err != nil {
		// The IPC socket is likely gone; reconnect on the next update.
		d.logout()
		d.loggedIn = false
		return err
	}
	d.logger.Debug("Updated Discord activity", "state", activity.State, "details", activity.Details)
	return nil
}

// ClearPresence implements Sink.
func (d *DiscordSink) ClearPresence() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loggedIn {
		d.logout()
		d.loggedIn = false
	}
	return nil
}

// Close releases the Discord connection.
func (d *DiscordSink) Close() error {
	return d.ClearPresence()
}
