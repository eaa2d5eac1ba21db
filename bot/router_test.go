package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/meme-machine/records"
	"github.com/onnwee/meme-machine/stream"
	"github.com/onnwee/meme-machine/telemetry"
)

// memStore is an in-memory records.Store that keeps insertion order.
type memStore struct {
	mu     sync.Mutex
	recs   []records.Record
	next   int
	addErr error
	pick   int
}

func (s *memStore) Add(_ context.Context, r records.Record) (records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return records.Record{}, s.addErr
	}
	s.next++
	r.ID = fmt.Sprintf("id-%d", s.next)
	s.recs = append(s.recs, r)
	return r, nil
}

func (s *memStore) byKind(kind records.Kind) []records.Record {
	var out []records.Record
	for _, r := range s.recs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) Count(_ context.Context, kind records.Kind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byKind(kind))), nil
}

func (s *memStore) Random(_ context.Context, kind records.Kind) (records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.byKind(kind)
	if len(recs) == 0 {
		return records.Record{}, records.ErrEmpty
	}
	return recs[s.pick%len(recs)], nil
}

func (s *memStore) Delete(_ context.Context, kind records.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.recs {
		if r.Kind == kind && r.ID == id {
			s.recs = append(s.recs[:i], s.recs[i+1:]...)
			return nil
		}
	}
	return records.ErrNotFound
}

func (s *memStore) Ping(context.Context) error  { return nil }
func (s *memStore) Close(context.Context) error { return nil }

type sent struct {
	channel string
	text    string
	corr    string
}

type fakeResponder struct {
	sends     []sent
	deletes   []string
	sendErr   error
	deleteErr error
}

func (f *fakeResponder) Send(ctx context.Context, channelID, text string) error {
	f.sends = append(f.sends, sent{channelID, text, telemetry.GetCorrelation(ctx)})
	return f.sendErr
}

func (f *fakeResponder) Delete(_ context.Context, _ string, messageID string) error {
	f.deletes = append(f.deletes, messageID)
	return f.deleteErr
}

func (f *fakeResponder) last(t *testing.T) string {
	t.Helper()
	if len(f.sends) == 0 {
		t.Fatal("no reply sent")
	}
	return f.sends[len(f.sends)-1].text
}

type staticResolver map[string]string

func (r staticResolver) DisplayName(_ context.Context, id string) (string, error) {
	if name, ok := r[id]; ok {
		return name, nil
	}
	return "", errors.New("unknown user")
}

type jokeFunc func(context.Context) (string, error)

func (f jokeFunc) Fetch(ctx context.Context) (string, error) { return f(ctx) }

var submitted = time.Date(2019, time.January, 2, 3, 4, 5, 0, time.UTC)

func newTestRouter(store records.Store) *Router {
	return New(Options{
		Prefix:    ">",
		Owner:     "Tigroh",
		Streamer:  stream.Streamer{Name: "Glitch", Login: "Glitch_it", Link: "https://www.twitch.tv/glitch_it"},
		Store:     store,
		Admins:    []string{"admin-1"},
		Resolvers: map[string]UserResolver{"discord": staticResolver{"user-1": "CurrentName"}},
		Intn:      func(int64) int64 { return 3 },
		Jokes: jokeFunc(func(context.Context) (string, error) {
			return "I'm reading a book about anti-gravity. It's impossible to put down.", nil
		}),
	})
}

func message(content string) Message {
	return Message{
		ID:         "msg-1",
		ChannelID:  "chan-1",
		Platform:   "discord",
		AuthorID:   "user-1",
		AuthorName: "StoredName",
		Content:    content,
		CreatedAt:  submitted,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		command string
		args    []string
		ok      bool
	}{
		{"not a command", "hello >ping", "", nil, false},
		{"empty", "", "", nil, false},
		{"lowercased", ">PiNg", "ping", []string{}, true},
		{"args", ">addquote to be or not", "addquote", []string{"to", "be", "or", "not"}, true},
		{"hide stripped", ">roll -hide", "roll", []string{}, true},
		{"hide only trailing", ">addquote -hide me", "addquote", []string{"-hide", "me"}, true},
		{"double space keeps empty token", ">addmeme  x", "addmeme", []string{"", "x"}, true},
		{"bare prefix", ">", "", []string{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, ok := Parse(">", tt.content)
			if ok != tt.ok || cmd != tt.command {
				t.Fatalf("Parse(%q) = %q, %v, %v; want %q, %v", tt.content, cmd, args, ok, tt.command, tt.ok)
			}
			if !ok {
				return
			}
			if strings.Join(args, "|") != strings.Join(tt.args, "|") || len(args) != len(tt.args) {
				t.Errorf("Parse(%q) args = %q, want %q", tt.content, args, tt.args)
			}
		})
	}
}

func TestHandleSimpleCommands(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{">ping", "Pong!"},
		{">roll", "You rolled 4!"},
		{">stream", "Watch Glitch's stream here: https://www.twitch.tv/glitch_it"},
		{">dadjoke", "I'm reading a book about anti-gravity. It's impossible to put down."},
		{">dance", "This is not a valid command StoredName, you foolish mortal.\nType >help and you will get a list of all the commands I listen to."},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			resp := &fakeResponder{}
			if err := newTestRouter(&memStore{}).Handle(context.Background(), message(tt.content), resp); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if len(resp.sends) != 1 {
				t.Fatalf("replies = %d, want 1", len(resp.sends))
			}
			if resp.sends[0].channel != "chan-1" {
				t.Errorf("reply channel = %q", resp.sends[0].channel)
			}
			if got := resp.last(t); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleIgnoresNonCommands(t *testing.T) {
	resp := &fakeResponder{}
	if err := newTestRouter(&memStore{}).Handle(context.Background(), message("just chatting"), resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.sends) != 0 {
		t.Errorf("unexpected reply %q", resp.sends)
	}
}

func TestHelp(t *testing.T) {
	resp := &fakeResponder{}
	_ = newTestRouter(&memStore{}).Handle(context.Background(), message(">help"), resp)
	got := resp.last(t)
	if !strings.HasPrefix(got, "...\n\nBeep boop. This is a list of all possible commands:\n```\t>stream : Get the link to Glitch's stream.\n") {
		t.Errorf("help header = %q", got)
	}
	if !strings.HasSuffix(got, "```\nFeature ideas can be sent to my master, Tigroh.\n\n...") {
		t.Errorf("help footer = %q", got)
	}
	for _, name := range []string{"ping", "roll", "addmeme", "randommeme", "addquote", "randomquote", "dadjoke", "deletememe", "deletequote"} {
		if !strings.Contains(got, "\t>"+name+" : ") {
			t.Errorf("help misses %s", name)
		}
	}
}

func TestMemeFlow(t *testing.T) {
	store := &memStore{}
	r := newTestRouter(store)
	ctx := context.Background()
	resp := &fakeResponder{}

	_ = r.Handle(ctx, message(">randommeme"), resp)
	if got := resp.last(t); got != "There are no memes yet. Add one with >addmeme <url>." {
		t.Errorf("empty reply = %q", got)
	}

	_ = r.Handle(ctx, message(">addmeme not-a-url"), resp)
	if got := resp.last(t); got != "The URL you submitted is not valid." {
		t.Errorf("invalid reply = %q", got)
	}
	_ = r.Handle(ctx, message(">addmeme"), resp)
	if got := resp.last(t); got != "The URL you submitted is not valid." {
		t.Errorf("missing url reply = %q", got)
	}

	_ = r.Handle(ctx, message(">addmeme https://i.imgur.com/cat.gif"), resp)
	if got := resp.last(t); got != "Thank you for submitting. Your meme was added to the list." {
		t.Errorf("add reply = %q", got)
	}
	if n, _ := store.Count(ctx, records.KindMeme); n != 1 {
		t.Fatalf("stored memes = %d", n)
	}
	rec := store.recs[0]
	if rec.AuthorID != "user-1" || rec.Platform != "discord" || !rec.CreatedAt.Equal(submitted) {
		t.Errorf("stored record = %+v", rec)
	}

	_ = r.Handle(ctx, message(">randommeme"), resp)
	want := "`Submitted by CurrentName on 2-1-2019 at 03:04:05 (id: id-1)`\nhttps://i.imgur.com/cat.gif"
	if got := resp.last(t); got != want {
		t.Errorf("random reply = %q, want %q", got, want)
	}
}

func TestQuoteFlow(t *testing.T) {
	store := &memStore{}
	r := newTestRouter(store)
	ctx := context.Background()
	resp := &fakeResponder{}

	_ = r.Handle(ctx, message(">randomquote"), resp)
	if got := resp.last(t); got != "There are no quotes yet. Add one with >addquote <text>." {
		t.Errorf("empty reply = %q", got)
	}
	_ = r.Handle(ctx, message(">addquote"), resp)
	if got := resp.last(t); got != "You have to give me a quote to remember." {
		t.Errorf("empty text reply = %q", got)
	}

	msg := message(">addquote I am the captain now")
	msg.AuthorID = "user-2"
	_ = r.Handle(ctx, msg, resp)
	if got := resp.last(t); got != "Thank you for submitting. Your quote was added to the list." {
		t.Errorf("add reply = %q", got)
	}

	// user-2 is unknown to the resolver, so the stored name is used.
	_ = r.Handle(ctx, message(">randomquote"), resp)
	want := "`Submitted by StoredName on 2-1-2019 at 03:04:05 (id: id-1)`\n\"I am the captain now\""
	if got := resp.last(t); got != want {
		t.Errorf("random reply = %q, want %q", got, want)
	}
}

func TestAddStoreError(t *testing.T) {
	r := newTestRouter(&memStore{addErr: errors.New("disk full")})
	resp := &fakeResponder{}
	_ = r.Handle(context.Background(), message(">addmeme https://example.com/a.png"), resp)
	if got := resp.last(t); got != "Something went wrong saving this meme." {
		t.Errorf("meme reply = %q", got)
	}
	_ = r.Handle(context.Background(), message(">addquote hi"), resp)
	if got := resp.last(t); got != "Something went wrong saving this quote." {
		t.Errorf("quote reply = %q", got)
	}
}

func TestDelete(t *testing.T) {
	store := &memStore{}
	r := newTestRouter(store)
	ctx := context.Background()
	if _, err := store.Add(ctx, records.Record{Kind: records.KindMeme, Content: "https://example.com"}); err != nil {
		t.Fatal(err)
	}

	admin := func(content string) Message {
		m := message(content)
		m.AuthorID = "admin-1"
		m.AuthorName = "Tigroh"
		return m
	}
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"not admin", message(">deletememe id-1"), "You are not allowed to do that, StoredName."},
		{"missing id", admin(">deletememe"), "Tell me which one to delete: >deletememe <id>."},
		{"missing quote id", admin(">deletequote"), "Tell me which one to delete: >deletequote <id>."},
		{"unknown id", admin(">deletememe nope"), "I could not find a meme with id nope."},
		{"wrong kind", admin(">deletequote id-1"), "I could not find a quote with id id-1."},
		{"deleted", admin(">deletememe id-1"), "Meme id-1 was deleted."},
		{"already gone", admin(">deletememe id-1"), "I could not find a meme with id id-1."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &fakeResponder{}
			_ = r.Handle(ctx, tt.msg, resp)
			if got := resp.last(t); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDadJokeError(t *testing.T) {
	r := New(Options{Store: &memStore{}, Jokes: jokeFunc(func(context.Context) (string, error) {
		return "", errors.New("503")
	})})
	resp := &fakeResponder{}
	_ = r.Handle(context.Background(), message(">dadjoke"), resp)
	if got := resp.last(t); got != "I could not think of a joke right now." {
		t.Errorf("reply = %q", got)
	}
}

func TestHide(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		deleteErr error
		deletes   int
	}{
		{"hide", ">ping -hide", nil, 1},
		{"no hide", ">ping", nil, 0},
		{"hide on unknown", ">-hide", nil, 1},
		{"unsupported delete", ">ping -hide", fmt.Errorf("twitch: %w", errors.ErrUnsupported), 1},
		{"delete fails", ">ping -hide", errors.New("missing permissions"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &fakeResponder{deleteErr: tt.deleteErr}
			if err := newTestRouter(&memStore{}).Handle(context.Background(), message(tt.content), resp); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if len(resp.deletes) != tt.deletes {
				t.Fatalf("deletes = %d, want %d", len(resp.deletes), tt.deletes)
			}
			if tt.deletes > 0 && resp.deletes[0] != "msg-1" {
				t.Errorf("deleted %q", resp.deletes[0])
			}
			if len(resp.sends) != 1 {
				t.Errorf("replies = %d, want 1", len(resp.sends))
			}
		})
	}
}

func TestHandleSendError(t *testing.T) {
	resp := &fakeResponder{sendErr: errors.New("gateway closed")}
	err := newTestRouter(&memStore{}).Handle(context.Background(), message(">ping -hide"), resp)
	if err == nil {
		t.Fatal("expected send error")
	}
	if len(resp.deletes) != 0 {
		t.Error("message hidden although reply failed")
	}
}

func TestCustomPrefix(t *testing.T) {
	r := New(Options{Prefix: "!", Store: &memStore{}})
	resp := &fakeResponder{}
	_ = r.Handle(context.Background(), message(">ping"), resp)
	if len(resp.sends) != 0 {
		t.Fatal("replied to wrong prefix")
	}
	_ = r.Handle(context.Background(), message("!randommeme"), resp)
	if got := resp.last(t); got != "There are no memes yet. Add one with !addmeme <url>." {
		t.Errorf("reply = %q", got)
	}
}

func TestHandleCorrelation(t *testing.T) {
	r := newTestRouter(&memStore{})

	resp := &fakeResponder{}
	if err := r.Handle(context.Background(), message(">ping"), resp); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := resp.sends[0].corr; got != "discord-msg-1" {
		t.Errorf("correlation = %q, want discord-msg-1", got)
	}

	resp = &fakeResponder{}
	ctx := telemetry.WithCorrelation(context.Background(), "upstream")
	if err := r.Handle(ctx, message(">ping"), resp); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := resp.sends[0].corr; got != "upstream" {
		t.Errorf("correlation = %q, want upstream", got)
	}
}
