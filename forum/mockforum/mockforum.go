// In-memory implementation of forum.Forum, for tests and dry runs.
package mockforum

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/modkit/tradeflair/forum"
)

type PostedReply struct {
	ID       string
	ParentID string
	Body     string
}

type FiledReport struct {
	ItemID string
	Reason string
}

type MessageReply struct {
	MessageID string
	Body      string
}

// Mutable fake forum. Writes (replies, badges, removals) are visible to later fetches, so that repeated scans
// observe earlier side-effects the same way they would against a live forum.
type Forum struct {
	Bot string

	// Per-parent errors returned from Reply, for exercising best-effort paths.
	ReplyErr map[string]error
	// Returned from every SetBadge call when set.
	SetBadgeErr error

	mu          sync.Mutex
	threads     map[string]*forum.Thread
	threadOrder []string
	profiles    map[string]forum.Profile
	mods        []string
	messages    []forum.Message
	read        map[string]bool
	badges      map[string]string
	submissions map[string]forum.Submission
	seq         int

	Replies        []PostedReply
	Reports        []FiledReport
	Approvals      []string
	Removals       []string
	BadgeWrites    []string
	MessageReplies []MessageReply
}

var _ forum.Forum = (*Forum)(nil)

func New(bot string) *Forum {
	return &Forum{
		Bot:         bot,
		ReplyErr:    make(map[string]error),
		threads:     make(map[string]*forum.Thread),
		profiles:    make(map[string]forum.Profile),
		read:        make(map[string]bool),
		badges:      make(map[string]string),
		submissions: make(map[string]forum.Submission),
	}
}

func (f *Forum) AddThread(t forum.Thread) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range t.Entries {
		t.Entries[i].ThreadID = t.ID
	}
	if _, ok := f.threads[t.ID]; !ok {
		f.threadOrder = append(f.threadOrder, t.ID)
	}
	f.threads[t.ID] = &t
}

func (f *Forum) AddProfile(p forum.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[strings.ToLower(p.Name)] = p
}

func (f *Forum) SetModerators(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mods = names
}

func (f *Forum) AddMessage(m forum.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
}

func (f *Forum) AddSubmission(s forum.Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions[s.ID] = s
}

// Current badge of a user, as last written (or "" if never written).
func (f *Forum) Badge(user string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.badges[strings.ToLower(user)]
}

// Replace the body of an existing entry or reply, simulating a participant edit.
func (f *Forum) EditBody(itemID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.findPost(itemID)
	if p == nil {
		return forum.ErrNotFound
	}
	p.Body = body
	return nil
}

func (f *Forum) IsRead(messageID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read[messageID]
}

// Replies posted under the given parent id.
func (f *Forum) RepliesTo(parentID string) []PostedReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PostedReply
	for _, r := range f.Replies {
		if r.ParentID == parentID {
			out = append(out, r)
		}
	}
	return out
}

func (f *Forum) BotName() string {
	return f.Bot
}

func (f *Forum) FetchThread(ctx context.Context, threadID string) (*forum.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, forum.ErrNotFound)
	}
	out := f.copyThread(t)
	return &out, nil
}

func (f *Forum) FetchTarget(ctx context.Context, itemID string) (*forum.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tid := range f.threadOrder {
		t := f.copyThread(f.threads[tid])
		for _, e := range t.Entries {
			if e.ID == itemID {
				return &forum.Target{ThreadID: t.ID, Entry: e}, nil
			}
			for _, r := range e.Children {
				if r.ID == itemID {
					return &forum.Target{ThreadID: t.ID, Entry: e, ReplyID: r.ID}, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("item %s: %w", itemID, forum.ErrNotFound)
}

func (f *Forum) Reply(ctx context.Context, parentID, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ReplyErr[parentID]; err != nil {
		return "", err
	}
	f.seq++
	id := fmt.Sprintf("bot%04d", f.seq)
	f.Replies = append(f.Replies, PostedReply{ID: id, ParentID: parentID, Body: body})
	p := forum.Post{ID: id, Author: f.Bot, Body: body}
	for _, t := range f.threads {
		for i := range t.Entries {
			e := &t.Entries[i]
			if e.ID == parentID {
				e.Children = append(e.Children, forum.Reply{Post: p})
				return id, nil
			}
			for j := range e.Children {
				if e.Children[j].ID == parentID {
					e.Children[j].Replies = append(e.Children[j].Replies, p)
					return id, nil
				}
			}
		}
	}
	// replies to submissions and messages are only recorded
	return id, nil
}

func (f *Forum) SetBadge(ctx context.Context, user, badge string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetBadgeErr != nil {
		return f.SetBadgeErr
	}
	f.badges[strings.ToLower(user)] = badge
	f.BadgeWrites = append(f.BadgeWrites, user+"="+badge)
	return nil
}

func (f *Forum) Report(ctx context.Context, itemID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reports = append(f.Reports, FiledReport{ItemID: itemID, Reason: reason})
	if p := f.findPost(itemID); p != nil {
		p.Reported = true
	}
	return nil
}

func (f *Forum) Approve(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Approvals = append(f.Approvals, itemID)
	if p := f.findPost(itemID); p != nil {
		p.Reported = false
		p.Removed = false
	}
	return nil
}

func (f *Forum) Remove(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Removals = append(f.Removals, itemID)
	if s, ok := f.submissions[itemID]; ok {
		s.Removed = true
		f.submissions[itemID] = s
		return nil
	}
	if p := f.findPost(itemID); p != nil {
		p.Removed = true
	}
	return nil
}

func (f *Forum) Profile(ctx context.Context, user string) (*forum.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[strings.ToLower(user)]
	if !ok {
		// unknown accounts look the same as shadow-removed ones
		return &forum.Profile{Name: user, Suspended: true}, nil
	}
	return &p, nil
}

func (f *Forum) Moderators(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.mods...), nil
}

func (f *Forum) UnreadMessages(ctx context.Context) ([]forum.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []forum.Message
	for _, m := range f.messages {
		if !f.read[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *Forum) ReplyMessage(ctx context.Context, messageID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MessageReplies = append(f.MessageReplies, MessageReply{MessageID: messageID, Body: body})
	return nil
}

func (f *Forum) MarkRead(ctx context.Context, messageIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range messageIDs {
		f.read[id] = true
	}
	return nil
}

// IsRemoved reports whether a submission was removed (by a moderator or its author).
func (f *Forum) IsRemoved(ctx context.Context, submissionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[submissionID]
	if !ok {
		return false, nil
	}
	return s.Removed || s.Author == "", nil
}

// NewSubmissions returns the most recent submissions, newest first.
func (f *Forum) NewSubmissions(ctx context.Context, limit int) ([]forum.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]forum.Submission, 0, len(f.submissions))
	for _, s := range f.submissions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// must be called with lock held
func (f *Forum) findPost(itemID string) *forum.Post {
	for _, t := range f.threads {
		for i := range t.Entries {
			e := &t.Entries[i]
			if e.ID == itemID {
				return &e.Post
			}
			for j := range e.Children {
				c := &e.Children[j]
				if c.ID == itemID {
					return &c.Post
				}
				for k := range c.Replies {
					if c.Replies[k].ID == itemID {
						return &c.Replies[k]
					}
				}
			}
		}
	}
	return nil
}

// deep copy, with author badges refreshed from any badge writes. must be called with lock held.
func (f *Forum) copyThread(t *forum.Thread) forum.Thread {
	out := forum.Thread{ID: t.ID, Title: t.Title, Entries: make([]forum.Entry, len(t.Entries))}
	for i, e := range t.Entries {
		ne := forum.Entry{Post: f.refresh(e.Post), ThreadID: t.ID, Children: make([]forum.Reply, len(e.Children))}
		for j, c := range e.Children {
			nr := forum.Reply{Post: f.refresh(c.Post), Replies: make([]forum.Post, len(c.Replies))}
			for k, gc := range c.Replies {
				nr.Replies[k] = f.refresh(gc)
			}
			ne.Children[j] = nr
		}
		out.Entries[i] = ne
	}
	return out
}

func (f *Forum) refresh(p forum.Post) forum.Post {
	if b, ok := f.badges[strings.ToLower(p.Author)]; ok && p.Author != "" {
		p.AuthorBadge = b
	}
	return p
}
