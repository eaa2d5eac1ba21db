// Package twitchchat bridges Twitch IRC chat to the command router.
//
// Bridge joins one channel with a bot account (username plus an OAuth token with
// chat:read and chat:edit scopes), turns every private message into a
// bot.Message with platform "twitch" and replies with Say. Twitch chat is a
// single line medium, so replies are flattened: code fences are dropped,
// newlines and tabs become spaces and the result is cut to the 500 character
// limit. Deleting the invoking message is not supported and reports
// ErrUnsupported.
package twitchchat
