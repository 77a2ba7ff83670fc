package reddit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/modkit/tradeflair/config"
	"github.com/modkit/tradeflair/forum"
)

const threadJSON = `[
 {"kind": "Listing", "data": {"children": [{"kind": "t3", "data": {"id": "thrd01", "title": "Confirmed trades"}}]}},
 {"kind": "Listing", "data": {"children": [
  {"kind": "t1", "data": {"id": "e100001", "parent_id": "t3_thrd01", "link_id": "t3_thrd01", "author": "alice",
   "author_flair_css_class": "i-3", "author_flair_text": "Trusted", "body": "traded with u/bob",
   "permalink": "/r/tradeswap/comments/thrd01/x/e100001/", "created_utc": 100,
   "replies": {"kind": "Listing", "data": {"children": [
    {"kind": "t1", "data": {"id": "r100001", "parent_id": "t1_e100001", "link_id": "t3_thrd01", "author": "bob",
     "author_flair_css_class": null, "body": "confirmed", "num_reports": 1, "created_utc": 110,
     "replies": {"kind": "Listing", "data": {"children": [
      {"kind": "t1", "data": {"id": "g100001", "parent_id": "t1_r100001", "author": "flairbot", "body": "Added",
       "created_utc": 120, "replies": ""}}
     ]}}}}
   ]}}}},
  {"kind": "t1", "data": {"id": "e100002", "parent_id": "t3_thrd01", "author": "[deleted]", "body": "[deleted]",
   "banned_by": "somemod", "created_utc": 200, "replies": ""}},
  {"kind": "more", "data": {"parent_id": "t3_thrd01", "children": ["e100003"]}}
 ]}}
]`

const moreJSON = `{"json": {"errors": [], "data": {"things": [
 {"kind": "t1", "data": {"id": "e100003", "parent_id": "t3_thrd01", "author": "carol", "body": "u/dave",
  "created_utc": 150, "replies": ""}}
]}}}`

type fakeReddit struct {
	mu          sync.Mutex
	tokens      int
	rejectFirst bool
	forms       map[string]url.Values
	queries     map[string]url.Values
	auth        []string
}

func (f *fakeReddit) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = r.ParseForm()
		f.queries[r.URL.Path] = r.URL.Query()
		if r.Method == http.MethodPost {
			f.forms[r.URL.Path] = r.PostForm
		}
		f.auth = append(f.auth, r.Header.Get("Authorization"))
	}
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.tokens++
		n := f.tokens
		f.mu.Unlock()
		io.WriteString(w, `{"access_token": "tok`+string(rune('0'+n))+`", "expires_in": 3600}`)
	})
	mux.HandleFunc("/comments/thrd01", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, threadJSON)
	})
	mux.HandleFunc("/api/morechildren", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, moreJSON)
	})
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		switch r.URL.Query().Get("id") {
		case "t1_r100001":
			io.WriteString(w, `{"kind": "Listing", "data": {"children": [{"kind": "t1", "data":
				{"id": "r100001", "parent_id": "t1_e100001", "link_id": "t3_thrd01", "author": "bob"}}]}}`)
		case "t3_s100001":
			io.WriteString(w, `{"kind": "Listing", "data": {"children": [{"kind": "t3", "data":
				{"id": "s100001", "author": "alice", "removed_by_category": "moderator"}}]}}`)
		default:
			io.WriteString(w, `{"kind": "Listing", "data": {"children": []}}`)
		}
	})
	mux.HandleFunc("/api/comment", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		reject := f.rejectFirst
		f.rejectFirst = false
		f.mu.Unlock()
		if reject {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		record(r)
		io.WriteString(w, `{"json": {"errors": [], "data": {"things": [{"kind": "t1", "data": {"id": "bot0001"}}]}}}`)
	})
	mux.HandleFunc("/r/tradeswap/api/flair", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, `{"json": {"errors": []}}`)
	})
	mux.HandleFunc("/api/report", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, `{"json": {"errors": [["RATELIMIT", "you are doing that too much", "ratelimit"]]}}`)
	})
	mux.HandleFunc("/api/remove", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("/api/read_message", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("/user/alice/about", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"kind": "t2", "data": {"name": "alice", "created_utc": 1717243200,
			"link_karma": 40, "comment_karma": 70}}`)
	})
	mux.HandleFunc("/user/mallory/about", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"kind": "t2", "data": {"name": "mallory", "is_suspended": true}}`)
	})
	mux.HandleFunc("/user/ghost/about", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/r/tradeswap/about/moderators", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"kind": "UserList", "data": {"children": [{"name": "modone"}, {"name": "modtwo"}]}}`)
	})
	mux.HandleFunc("/message/unread", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"kind": "Listing", "data": {"children": [
			{"kind": "t4", "data": {"id": "m1", "author": "modone", "body": "https://example/link", "was_comment": false}},
			{"kind": "t1", "data": {"id": "c1", "author": "bob", "body": "reply", "was_comment": true}},
			{"kind": "t4", "data": {"id": "m2", "author": "bob", "body": "username mention", "was_comment": true}}
		]}}`)
	})
	mux.HandleFunc("/r/tradeswap/new", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, `{"kind": "Listing", "data": {"children": [
			{"kind": "t3", "data": {"id": "s100002", "author": "bob", "title": "[H] b [W] c", "created_utc": 1717246800}},
			{"kind": "t3", "data": {"id": "s100001", "author": "alice", "title": "[H] a [W] c", "created_utc": 1717243200,
				"removed_by_category": "moderator"}}
		]}}`)
	})
	return mux
}

func testClient(t *testing.T) (*Client, *fakeReddit) {
	fake := &fakeReddit{forms: make(map[string]url.Values), queries: make(map[string]url.Values)}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.Default().Reddit
	cfg.BaseURL = srv.URL
	cfg.AuthURL = srv.URL + "/api/v1/access_token"
	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"
	cfg.Username = "flairbot"
	cfg.Password = "hunter2"

	c := NewClient(cfg, "tradeswap", nil, nil)
	c.Client = srv.Client()
	c.Limiter = rate.NewLimiter(rate.Inf, 1)
	return c, fake
}

func TestFetchThread(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c, fake := testClient(t)

	thread, err := c.FetchThread(ctx, "thrd01")
	if !assert.NoError(err) {
		return
	}
	assert.Equal("Confirmed trades", thread.Title)
	if !assert.Equal(3, len(thread.Entries)) {
		return
	}

	first := thread.Entries[0]
	assert.Equal("e100001", first.ID)
	assert.Equal("thrd01", first.ThreadID)
	assert.Equal("alice", first.Author)
	assert.Equal("i-3", first.AuthorBadge)
	assert.Equal("https://www.reddit.com/r/tradeswap/comments/thrd01/x/e100001/", first.Permalink)
	assert.Equal(1, len(first.Children))
	assert.Equal("bob", first.Children[0].Author)
	assert.Equal("", first.Children[0].AuthorBadge)
	assert.True(first.Children[0].Reported)
	assert.Equal(1, len(first.Children[0].Replies))
	assert.Equal("flairbot", first.Children[0].Replies[0].Author)

	// expanded from the collapsed stub, and sorted by creation
	assert.Equal("e100003", thread.Entries[1].ID)
	assert.Equal("carol", thread.Entries[1].Author)

	deleted := thread.Entries[2]
	assert.True(deleted.Deleted())
	assert.True(deleted.Removed)

	assert.Equal("t3_thrd01", fake.queries["/api/morechildren"].Get("link_id"))
	assert.Equal("e100003", fake.queries["/api/morechildren"].Get("children"))
	assert.Equal("old", fake.queries["/comments/thrd01"].Get("sort"))
	assert.Equal("Trusted", c.lastFlairText("Alice"))
}

func TestFetchTarget(t *testing.T) {
	assert := assert.New(t)
	c, fake := testClient(t)

	target, err := c.FetchTarget(context.Background(), "r100001")
	if !assert.NoError(err) {
		return
	}
	assert.Equal("thrd01", target.ThreadID)
	assert.Equal("e100001", target.Entry.ID)
	assert.Equal("r100001", target.ReplyID)
	assert.Equal("e100001", fake.queries["/comments/thrd01"].Get("comment"))

	_, err = c.FetchTarget(context.Background(), "x999999")
	assert.True(errors.Is(err, forum.ErrNotFound))
}

func TestWrites(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c, fake := testClient(t)

	// populates flair text
	_, err := c.FetchThread(ctx, "thrd01")
	assert.NoError(err)

	id, err := c.Reply(ctx, "e100001", "Added")
	assert.NoError(err)
	assert.Equal("bot0001", id)
	assert.Equal("t1_e100001", fake.forms["/api/comment"].Get("thing_id"))
	assert.Equal("Added", fake.forms["/api/comment"].Get("text"))
	assert.Equal("json", fake.forms["/api/comment"].Get("api_type"))

	assert.NoError(c.SetBadge(ctx, "alice", "i-4"))
	assert.Equal("alice", fake.forms["/r/tradeswap/api/flair"].Get("name"))
	assert.Equal("i-4", fake.forms["/r/tradeswap/api/flair"].Get("css_class"))
	assert.Equal("Trusted", fake.forms["/r/tradeswap/api/flair"].Get("text"))

	err = c.Report(ctx, "r100001", "User not tagged in parent")
	assert.ErrorContains(err, "RATELIMIT")
	assert.Equal("t1_r100001", fake.forms["/api/report"].Get("thing_id"))

	assert.NoError(c.ReplyMessage(ctx, "m1", "done"))
	assert.Equal("t4_m1", fake.forms["/api/comment"].Get("thing_id"))

	assert.NoError(c.MarkRead(ctx, []string{"m1", "m3"}))
	assert.Equal("t4_m1,t4_m3", fake.forms["/api/read_message"].Get("id"))

	// one token for the whole session
	assert.Equal(1, fake.tokens)
	for _, a := range fake.auth {
		assert.Equal("bearer tok1", a)
	}
}

func TestTokenRefreshOnUnauthorized(t *testing.T) {
	assert := assert.New(t)
	c, fake := testClient(t)
	fake.rejectFirst = true

	id, err := c.Reply(context.Background(), "e100001", "Added")
	assert.NoError(err)
	assert.Equal("bot0001", id)
	assert.Equal(2, fake.tokens)
	assert.Equal([]string{"bearer tok2"}, fake.auth)
}

func TestCachedTokenExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c, fake := testClient(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return now }

	_, err := c.token(ctx)
	assert.NoError(err)
	_, err = c.token(ctx)
	assert.NoError(err)
	assert.Equal(1, fake.tokens)

	// refreshed a minute before the token runs out
	now = now.Add(59*time.Minute + time.Second)
	tok, err := c.token(ctx)
	assert.NoError(err)
	assert.Equal("tok2", tok)
}

func TestProfiles(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c, _ := testClient(t)

	p, err := c.Profile(ctx, "alice")
	assert.NoError(err)
	assert.False(p.Suspended)
	assert.Equal(110, p.Karma())
	assert.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), p.CreatedAt)

	p, err = c.Profile(ctx, "mallory")
	assert.NoError(err)
	assert.True(p.Suspended)

	p, err = c.Profile(ctx, "ghost")
	assert.NoError(err)
	assert.True(p.Suspended)
	assert.Equal("ghost", p.Name)

	mods, err := c.Moderators(ctx)
	assert.NoError(err)
	assert.Equal([]string{"modone", "modtwo"}, mods)
}

func TestUnreadMessages(t *testing.T) {
	assert := assert.New(t)
	c, _ := testClient(t)

	msgs, err := c.UnreadMessages(context.Background())
	assert.NoError(err)
	assert.Equal([]forum.Message{{ID: "m1", Author: "modone", Body: "https://example/link"}}, msgs)
}

func TestSubmissions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c, fake := testClient(t)

	subs, err := c.NewSubmissions(ctx, 25)
	assert.NoError(err)
	assert.Equal("25", fake.queries["/r/tradeswap/new"].Get("limit"))
	if !assert.Equal(2, len(subs)) {
		return
	}
	assert.Equal("s100002", subs[0].ID)
	assert.False(subs[0].Removed)
	assert.True(subs[1].Removed)
	assert.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), subs[1].CreatedAt)

	// known submissions are addressed as links
	assert.NoError(c.Remove(ctx, "s100002"))
	assert.Equal("t3_s100002", fake.forms["/api/remove"].Get("id"))
	assert.Equal("false", fake.forms["/api/remove"].Get("spam"))

	removed, err := c.IsRemoved(ctx, "s100001")
	assert.NoError(err)
	assert.True(removed)

	// gone entirely
	removed, err = c.IsRemoved(ctx, "s999999")
	assert.NoError(err)
	assert.True(removed)
}
