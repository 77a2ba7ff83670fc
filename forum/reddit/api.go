package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/modkit/tradeflair/forum"
	"github.com/modkit/tradeflair/util"
)

type listingParams struct {
	Limit   int    `url:"limit,omitempty"`
	Sort    string `url:"sort,omitempty"`
	Comment string `url:"comment,omitempty"`
	Depth   int    `url:"depth,omitempty"`
}

type infoParams struct {
	ID string `url:"id"`
}

type moreParams struct {
	APIType  string `url:"api_type"`
	LinkID   string `url:"link_id"`
	Children string `url:"children"`
}

type commentParams struct {
	APIType string `url:"api_type"`
	ThingID string `url:"thing_id"`
	Text    string `url:"text"`
}

type reportParams struct {
	APIType string `url:"api_type"`
	ThingID string `url:"thing_id"`
	Reason  string `url:"reason"`
}

type idParams struct {
	ID string `url:"id"`
}

type removeParams struct {
	ID   string `url:"id"`
	Spam bool   `url:"spam"`
}

type flairParams struct {
	APIType  string `url:"api_type"`
	Name     string `url:"name"`
	CSSClass string `url:"css_class"`
	Text     string `url:"text"`
}

// morechildren accepts at most this many ids per call
const moreChunk = 100

// expansion rounds, each of which may reveal further stubs
const maxMoreRounds = 10

func (c *Client) FetchThread(ctx context.Context, threadID string) (*forum.Thread, error) {
	entries, title, err := c.fetchComments(ctx, threadID, "")
	if err != nil {
		return nil, err
	}
	return &forum.Thread{ID: threadID, Title: title, Entries: entries}, nil
}

// fetchComments loads a link's comments (or the subtree under one top-level comment), expanding collapsed
// stubs, and assembles them into entries.
func (c *Client) fetchComments(ctx context.Context, linkID, focus string) ([]forum.Entry, string, error) {
	var resp []listing
	params := &listingParams{Limit: 500, Sort: "old", Comment: focus}
	if focus != "" {
		params.Depth = 3
	}
	if err := c.do(ctx, http.MethodGet, "/comments/"+url.PathEscape(linkID), params, &resp); err != nil {
		return nil, "", err
	}
	if len(resp) < 2 {
		return nil, "", fmt.Errorf("reddit: unexpected comments response for %s", linkID)
	}

	var title string
	if len(resp[0].Data.Children) > 0 {
		var link linkData
		if err := json.Unmarshal(resp[0].Data.Children[0].Data, &link); err == nil {
			title = link.Title
		}
	}

	var comments []commentData
	var more []string
	if err := flatten(&resp[1], &comments, &more); err != nil {
		return nil, "", err
	}
	for round := 0; len(more) > 0; round++ {
		if round >= maxMoreRounds {
			c.Logger.Warn("giving up expanding collapsed comments", "thread", linkID, "remaining", len(more))
			break
		}
		var next []string
		for start := 0; start < len(more); start += moreChunk {
			end := min(start+moreChunk, len(more))
			found, stubs, err := c.moreChildren(ctx, linkID, more[start:end])
			if err != nil {
				return nil, "", err
			}
			comments = append(comments, found...)
			next = append(next, stubs...)
		}
		more = next
	}
	return c.assemble(linkID, comments), title, nil
}

func (c *Client) moreChildren(ctx context.Context, linkID string, ids []string) ([]commentData, []string, error) {
	var resp jsonResponse
	params := &moreParams{APIType: "json", LinkID: "t3_" + linkID, Children: strings.Join(ids, ",")}
	if err := c.do(ctx, http.MethodGet, "/api/morechildren", params, &resp); err != nil {
		return nil, nil, err
	}
	if err := resp.err(); err != nil {
		return nil, nil, err
	}
	var l listing
	l.Data.Children = resp.JSON.Data.Things
	var comments []commentData
	var more []string
	if err := flatten(&l, &comments, &more); err != nil {
		return nil, nil, err
	}
	return comments, more, nil
}

func (c *Client) info(ctx context.Context, fullname string) (*thing, error) {
	var resp listing
	if err := c.do(ctx, http.MethodGet, "/api/info", &infoParams{ID: fullname}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Children) == 0 {
		return nil, fmt.Errorf("reddit %s: %w", fullname, forum.ErrNotFound)
	}
	return &resp.Data.Children[0], nil
}

func (c *Client) FetchTarget(ctx context.Context, itemID string) (*forum.Target, error) {
	t, err := c.info(ctx, "t1_"+itemID)
	if err != nil {
		return nil, err
	}
	var d commentData
	if err := json.Unmarshal(t.Data, &d); err != nil {
		return nil, fmt.Errorf("decoding comment %s: %w", itemID, err)
	}
	linkID := strings.TrimPrefix(d.LinkID, "t3_")

	entryID, replyID := d.ID, ""
	if parent, ok := strings.CutPrefix(d.ParentID, "t1_"); ok {
		entryID, replyID = parent, d.ID
	}

	entries, _, err := c.fetchComments(ctx, linkID, entryID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID != entryID {
			continue
		}
		target := &forum.Target{ThreadID: linkID, Entry: e}
		if replyID == "" {
			return target, nil
		}
		for _, r := range e.Children {
			if r.ID == replyID {
				target.ReplyID = replyID
				return target, nil
			}
		}
	}
	// deeper than a direct reply to an entry
	return nil, fmt.Errorf("reddit item %s is not a thread entry or reply: %w", itemID, forum.ErrNotFound)
}

func (c *Client) Reply(ctx context.Context, parentID, body string) (string, error) {
	return c.comment(ctx, c.fullname(parentID), body)
}

func (c *Client) comment(ctx context.Context, thingID, body string) (string, error) {
	var resp jsonResponse
	params := &commentParams{APIType: "json", ThingID: thingID, Text: body}
	if err := c.do(ctx, http.MethodPost, "/api/comment", params, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	if len(resp.JSON.Data.Things) == 0 {
		return "", nil
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.JSON.Data.Things[0].Data, &created); err != nil {
		return "", fmt.Errorf("decoding created comment: %w", err)
	}
	return created.ID, nil
}

// SetBadge rewrites the flair css class of a user, keeping the flair text last seen for them.
func (c *Client) SetBadge(ctx context.Context, user, badge string) error {
	var resp jsonResponse
	params := &flairParams{APIType: "json", Name: user, CSSClass: badge, Text: c.lastFlairText(user)}
	if err := c.do(ctx, http.MethodPost, "/r/"+c.Subreddit+"/api/flair", params, &resp); err != nil {
		return err
	}
	return resp.err()
}

func (c *Client) Report(ctx context.Context, itemID, reason string) error {
	var resp jsonResponse
	params := &reportParams{APIType: "json", ThingID: c.fullname(itemID), Reason: reason}
	if err := c.do(ctx, http.MethodPost, "/api/report", params, &resp); err != nil {
		return err
	}
	return resp.err()
}

func (c *Client) Approve(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodPost, "/api/approve", &idParams{ID: c.fullname(itemID)}, nil)
}

func (c *Client) Remove(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodPost, "/api/remove", &removeParams{ID: c.fullname(itemID)}, nil)
}

// Profile returns suspended and shadow-banned accounts (which the API answers with 404) flagged as Suspended.
func (c *Client) Profile(ctx context.Context, user string) (*forum.Profile, error) {
	var t thing
	err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(user)+"/about", nil, &t)
	if errors.Is(err, forum.ErrNotFound) {
		return &forum.Profile{Name: user, Suspended: true}, nil
	}
	if err != nil {
		return nil, err
	}
	var d accountData
	if err := json.Unmarshal(t.Data, &d); err != nil {
		return nil, fmt.Errorf("decoding profile of %s: %w", user, err)
	}
	if d.IsSuspended {
		return &forum.Profile{Name: user, Suspended: true}, nil
	}
	return &forum.Profile{
		Name:         d.Name,
		CreatedAt:    util.FromEpochSeconds(d.CreatedUTC),
		LinkKarma:    d.LinkKarma,
		CommentKarma: d.CommentKarma,
	}, nil
}

func (c *Client) Moderators(ctx context.Context) ([]string, error) {
	var resp struct {
		Data struct {
			Children []struct {
				Name string `json:"name"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/r/"+c.Subreddit+"/about/moderators", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Data.Children))
	for _, m := range resp.Data.Children {
		out = append(out, m.Name)
	}
	return out, nil
}

// UnreadMessages skips comment replies and username mentions, which show up in the same inbox.
func (c *Client) UnreadMessages(ctx context.Context) ([]forum.Message, error) {
	var resp listing
	if err := c.do(ctx, http.MethodGet, "/message/unread", &listingParams{Limit: 100}, &resp); err != nil {
		return nil, err
	}
	var out []forum.Message
	for _, t := range resp.Data.Children {
		if t.Kind != "t4" {
			continue
		}
		var d messageData
		if err := json.Unmarshal(t.Data, &d); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		if d.WasComment {
			continue
		}
		out = append(out, forum.Message{ID: d.ID, Author: authorName(d.Author), Body: d.Body})
	}
	return out, nil
}

func (c *Client) ReplyMessage(ctx context.Context, messageID, body string) error {
	_, err := c.comment(ctx, "t4_"+messageID, body)
	return err
}

func (c *Client) MarkRead(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	names := make([]string, len(messageIDs))
	for i, id := range messageIDs {
		names[i] = "t4_" + id
	}
	return c.do(ctx, http.MethodPost, "/api/read_message", &idParams{ID: strings.Join(names, ",")}, nil)
}

// NewSubmissions returns the newest submissions of the subreddit, newest first.
func (c *Client) NewSubmissions(ctx context.Context, limit int) ([]forum.Submission, error) {
	var resp listing
	if err := c.do(ctx, http.MethodGet, "/r/"+c.Subreddit+"/new", &listingParams{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	var out []forum.Submission
	for _, t := range resp.Data.Children {
		if t.Kind != "t3" {
			continue
		}
		var d linkData
		if err := json.Unmarshal(t.Data, &d); err != nil {
			return nil, fmt.Errorf("decoding submission: %w", err)
		}
		c.rememberLink(d.ID)
		out = append(out, toSubmission(&d))
	}
	return out, nil
}

// IsRemoved reports whether a submission is gone, removed by a moderator or deleted by its author.
func (c *Client) IsRemoved(ctx context.Context, submissionID string) (bool, error) {
	t, err := c.info(ctx, "t3_"+submissionID)
	if errors.Is(err, forum.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	var d linkData
	if err := json.Unmarshal(t.Data, &d); err != nil {
		return false, fmt.Errorf("decoding submission %s: %w", submissionID, err)
	}
	sub := toSubmission(&d)
	return sub.Removed || sub.Author == "", nil
}
