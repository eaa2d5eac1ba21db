package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/meme-machine/records"
	"github.com/onnwee/meme-machine/telemetry"
)

type entry struct {
	name        string
	description string
}

// catalog returns the commands listed by help, in display order.
func (r *Router) catalog() []entry {
	return []entry{
		{"stream", fmt.Sprintf("Get the link to %s's stream.", r.streamer.Name)},
		{"ping", "Play ping pong with me. If you dare to oppose me human."},
		{"roll", "Roll a dice. Test your luck."},
		{"addmeme", "Add a meme to the server's meme list."},
		{"randommeme", "Show a random meme of the server's meme list."},
		{"addquote", "Add a quote to the server's quote list."},
		{"randomquote", "Show a random quote of the server's quote list."},
		{"dadjoke", "Hear a dad joke. You asked for it."},
		{"deletememe", "Remove a meme from the list by id. Admins only."},
		{"deletequote", "Remove a quote from the list by id. Admins only."},
	}
}

func known(command string) bool {
	switch command {
	case "help", "ping", "roll", "stream", "addmeme", "randommeme", "addquote",
		"randomquote", "deletememe", "deletequote", "dadjoke":
		return true
	}
	return false
}

func (r *Router) help() string {
	var b strings.Builder
	b.WriteString("...\n\nBeep boop. This is a list of all possible commands:\n```")
	for _, e := range r.catalog() {
		fmt.Fprintf(&b, "\t%s%s : %s\n", r.prefix, e.name, e.description)
	}
	fmt.Fprintf(&b, "```\nFeature ideas can be sent to my master, %s.\n\n...", r.owner)
	return b.String()
}

func (r *Router) roll() string {
	return fmt.Sprintf("You rolled %d!", r.intn(6)+1)
}

func (r *Router) streamLink() string {
	return fmt.Sprintf("Watch %s's stream here: %s", r.streamer.Name, r.streamer.Link)
}

func (r *Router) unknown(msg Message) string {
	return fmt.Sprintf("This is not a valid command %s, you foolish mortal.\nType %shelp and you will get a list of all the commands I listen to.", msg.AuthorName, r.prefix)
}

func (r *Router) addMeme(ctx context.Context, msg Message, args []string) string {
	url := ""
	if len(args) > 0 {
		url = args[0]
	}
	if !ValidURL(url) {
		return "The URL you submitted is not valid."
	}
	return r.add(ctx, records.KindMeme, msg, url)
}

func (r *Router) addQuote(ctx context.Context, msg Message, args []string) string {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "You have to give me a quote to remember."
	}
	return r.add(ctx, records.KindQuote, msg, text)
}

func (r *Router) add(ctx context.Context, kind records.Kind, msg Message, content string) string {
	rec, err := r.store.Add(ctx, records.Record{
		Kind:       kind,
		Platform:   msg.Platform,
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		Content:    content,
		CreatedAt:  msg.CreatedAt,
	})
	if err != nil {
		slog.Error("store record", slog.String("kind", string(kind)), slog.Any("err", err), slog.String("component", "bot_router"))
		return fmt.Sprintf("Something went wrong saving this %s.", kind)
	}
	telemetry.IncRecordAdded(string(kind))
	slog.Info("record added", slog.String("kind", string(kind)), slog.String("id", rec.ID), slog.String("content", rec.Content), slog.String("component", "bot_router"))
	return fmt.Sprintf("Thank you for submitting. Your %s was added to the list.", kind)
}

func (r *Router) randomRecord(ctx context.Context, kind records.Kind) string {
	rec, err := r.store.Random(ctx, kind)
	switch {
	case errors.Is(err, records.ErrEmpty):
		return r.emptyText(kind)
	case err != nil:
		slog.Error("random record", slog.String("kind", string(kind)), slog.Any("err", err), slog.String("component", "bot_router"))
		return fmt.Sprintf("Something went wrong fetching a %s.", kind)
	}
	header := SubmissionHeader(r.submitter(ctx, rec), rec.CreatedAt, rec.ID)
	if kind == records.KindQuote {
		return fmt.Sprintf("`%s`\n\"%s\"", header, rec.Content)
	}
	return fmt.Sprintf("`%s`\n%s", header, rec.Content)
}

func (r *Router) emptyText(kind records.Kind) string {
	if kind == records.KindQuote {
		return fmt.Sprintf("There are no quotes yet. Add one with %saddquote <text>.", r.prefix)
	}
	return fmt.Sprintf("There are no memes yet. Add one with %saddmeme <url>.", r.prefix)
}

// submitter prefers the live platform name over the one stored with the record.
func (r *Router) submitter(ctx context.Context, rec records.Record) string {
	if res, ok := r.resolvers[rec.Platform]; ok && res != nil && rec.AuthorID != "" {
		name, err := res.DisplayName(ctx, rec.AuthorID)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			slog.Debug("resolve submitter", slog.String("platform", rec.Platform), slog.String("user", rec.AuthorID), slog.Any("err", err), slog.String("component", "bot_router"))
		}
	}
	if rec.AuthorName != "" {
		return rec.AuthorName
	}
	return rec.AuthorID
}

func (r *Router) deleteRecord(ctx context.Context, kind records.Kind, msg Message, args []string) string {
	if !r.isAdmin(msg.AuthorID) {
		return fmt.Sprintf("You are not allowed to do that, %s.", msg.AuthorName)
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return fmt.Sprintf("Tell me which one to delete: %sdelete%s <id>.", r.prefix, kind)
	}
	id := strings.TrimSpace(args[0])
	err := r.store.Delete(ctx, kind, id)
	switch {
	case errors.Is(err, records.ErrNotFound):
		return fmt.Sprintf("I could not find a %s with id %s.", kind, id)
	case err != nil:
		slog.Error("delete record", slog.String("kind", string(kind)), slog.String("id", id), slog.Any("err", err), slog.String("component", "bot_router"))
		return fmt.Sprintf("Something went wrong deleting this %s.", kind)
	}
	telemetry.IncRecordDeleted(string(kind))
	slog.Info("record deleted", slog.String("kind", string(kind)), slog.String("id", id), slog.String("by", msg.AuthorID), slog.String("component", "bot_router"))
	return fmt.Sprintf("%s %s was deleted.", capitalize(string(kind)), id)
}

func (r *Router) dadJoke(ctx context.Context) string {
	if r.jokes == nil {
		return "I could not think of a joke right now."
	}
	joke, err := r.jokes.Fetch(ctx)
	if err != nil || strings.TrimSpace(joke) == "" {
		slog.Warn("fetch dad joke", slog.Any("err", err), slog.String("component", "bot_router"))
		return "I could not think of a joke right now."
	}
	return joke
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
