// Forum data model and the access interface consumed by the trade confirmation engine.
//
// Implementations live in sub-packages: `mockforum` (in-memory, for tests and dry runs) and `reddit` (HTTP
// API client).
package forum

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("forum item not found")

// Common fields of anything a participant can write in a thread.
type Post struct {
	ID string
	// Empty when the author account was deleted.
	Author string
	// Badge text of the author at fetch time. Carries the encoded trade count.
	AuthorBadge string
	Body        string
	Permalink   string
	// True when a human moderator removed the item.
	Removed bool
	// True when the item has open moderator reports.
	Reported bool
}

// Deleted reports whether the author of the post is gone.
func (p *Post) Deleted() bool {
	return p.Author == ""
}

// AuthoredBy compares the post author to name, case-insensitive.
func (p *Post) AuthoredBy(name string) bool {
	return p.Author != "" && strings.EqualFold(p.Author, name)
}

// A direct child of an Entry.
//
// Replies are the direct answers to this reply. They are only used to spot earlier bot replies, the engine
// never classifies deeper nesting.
type Reply struct {
	Post

	Replies []Post
}

// A top-level post inside a Thread.
type Entry struct {
	Post

	ThreadID string
	Children []Reply
}

// Named container of top-level entries, in arrival order.
type Thread struct {
	ID      string
	Title   string
	Entries []Entry
}

// Result of resolving a single item by id: the top-level entry it belongs to and, when the id names a child
// reply, that reply's id.
type Target struct {
	ThreadID string
	Entry    Entry
	ReplyID  string
}

// Public profile facts used for eligibility checks.
type Profile struct {
	Name         string
	CreatedAt    time.Time
	LinkKarma    int
	CommentKarma int
	// Suspended or shadow-removed from the platform's perspective.
	Suspended bool
}

func (p *Profile) Karma() int {
	return p.LinkKarma + p.CommentKarma
}

// Age in whole days at the given instant.
func (p *Profile) AgeDays(now time.Time) int {
	return int(now.Sub(p.CreatedAt).Hours() / 24)
}

// Direct (private) message sent to the bot account.
type Message struct {
	ID     string
	Author string
	Body   string
}

// Top-level post of the forum (a new thread), used by the cooldown engine.
type Submission struct {
	ID        string
	Author    string
	Title     string
	Body      string
	CreatedAt time.Time
	Removed   bool
}

// Everything the engine needs from the forum side. All methods are blocking network calls.
type Forum interface {
	// Account name the bot posts as.
	BotName() string

	// Fetch a thread with all entries and their children expanded.
	FetchThread(ctx context.Context, threadID string) (*Thread, error)

	// Resolve an entry or reply by id. Returns ErrNotFound if the item does not exist.
	FetchTarget(ctx context.Context, itemID string) (*Target, error)

	// Append a reply under the given entry or reply. Returns the id of the new reply.
	Reply(ctx context.Context, parentID, body string) (string, error)

	// Replace the badge text of a participant.
	SetBadge(ctx context.Context, user, badge string) error

	// File a moderator report against an item.
	Report(ctx context.Context, itemID, reason string) error

	// Approve an item, clearing open reports.
	Approve(ctx context.Context, itemID string) error

	// Remove an item (moderator action).
	Remove(ctx context.Context, itemID string) error

	// Fetch a participant profile. A suspended or shadow-removed account is returned with Suspended set,
	// not as an error.
	Profile(ctx context.Context, user string) (*Profile, error)

	// Names of the current moderators.
	Moderators(ctx context.Context) ([]string, error)

	// Unread direct messages (not comment replies).
	UnreadMessages(ctx context.Context) ([]Message, error)

	// Reply to a direct message.
	ReplyMessage(ctx context.Context, messageID, body string) error

	// Mark direct messages read.
	MarkRead(ctx context.Context, messageIDs []string) error
}
