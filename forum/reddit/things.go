package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/modkit/tradeflair/forum"
	"github.com/modkit/tradeflair/util"
)

// Generic wrapper of every API object.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type commentData struct {
	ID                  string          `json:"id"`
	ParentID            string          `json:"parent_id"`
	LinkID              string          `json:"link_id"`
	Author              string          `json:"author"`
	AuthorFlairCSSClass *string         `json:"author_flair_css_class"`
	AuthorFlairText     *string         `json:"author_flair_text"`
	Body                string          `json:"body"`
	Permalink           string          `json:"permalink"`
	Removed             bool            `json:"removed"`
	BannedBy            json.RawMessage `json:"banned_by"`
	NumReports          *int            `json:"num_reports"`
	CreatedUTC          float64         `json:"created_utc"`
	// Either "" or a nested listing.
	Replies json.RawMessage `json:"replies"`
}

type moreData struct {
	ParentID string   `json:"parent_id"`
	Children []string `json:"children"`
}

type linkData struct {
	ID                string          `json:"id"`
	Author            string          `json:"author"`
	Title             string          `json:"title"`
	Selftext          string          `json:"selftext"`
	CreatedUTC        float64         `json:"created_utc"`
	RemovedByCategory *string         `json:"removed_by_category"`
	BannedBy          json.RawMessage `json:"banned_by"`
}

type accountData struct {
	Name         string  `json:"name"`
	CreatedUTC   float64 `json:"created_utc"`
	LinkKarma    int     `json:"link_karma"`
	CommentKarma int     `json:"comment_karma"`
	IsSuspended  bool    `json:"is_suspended"`
}

type messageData struct {
	ID         string `json:"id"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	WasComment bool   `json:"was_comment"`
}

// Response of api_type=json write endpoints.
type jsonResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

func (r *jsonResponse) err() error {
	if len(r.JSON.Errors) == 0 {
		return nil
	}
	parts := make([]string, 0, len(r.JSON.Errors))
	for _, e := range r.JSON.Errors {
		fields := make([]string, len(e))
		for i, f := range e {
			fields[i] = fmt.Sprint(f)
		}
		parts = append(parts, strings.Join(fields, ": "))
	}
	return fmt.Errorf("reddit api errors: %s", strings.Join(parts, "; "))
}

// author names of deleted accounts are reported as "[deleted]"
func authorName(name string) string {
	if name == "[deleted]" {
		return ""
	}
	return name
}

// banned_by is either null, a moderator name, or a boolean
func bannedBy(raw json.RawMessage) bool {
	v := string(bytes.TrimSpace(raw))
	return v != "" && v != "null" && v != "false" && v != `""`
}

func (c *Client) toPost(d *commentData) forum.Post {
	p := forum.Post{
		ID:        d.ID,
		Author:    authorName(d.Author),
		Body:      d.Body,
		Permalink: d.Permalink,
		Removed:   d.Removed || bannedBy(d.BannedBy),
		Reported:  d.NumReports != nil && *d.NumReports > 0,
	}
	if d.AuthorFlairCSSClass != nil {
		p.AuthorBadge = *d.AuthorFlairCSSClass
	}
	if p.Author != "" && d.AuthorFlairText != nil {
		c.rememberFlairText(p.Author, *d.AuthorFlairText)
	}
	if strings.HasPrefix(p.Permalink, "/") {
		p.Permalink = "https://www.reddit.com" + p.Permalink
	}
	return p
}

func toSubmission(d *linkData) forum.Submission {
	return forum.Submission{
		ID:        d.ID,
		Author:    authorName(d.Author),
		Title:     d.Title,
		Body:      d.Selftext,
		CreatedAt: util.FromEpochSeconds(d.CreatedUTC),
		Removed:   d.RemovedByCategory != nil || bannedBy(d.BannedBy),
	}
}

// flatten collects the comments of a (nested) listing, and the ids hidden behind "more" stubs.
func flatten(l *listing, out *[]commentData, more *[]string) error {
	for _, t := range l.Data.Children {
		switch t.Kind {
		case "t1":
			var d commentData
			if err := json.Unmarshal(t.Data, &d); err != nil {
				return fmt.Errorf("decoding comment: %w", err)
			}
			*out = append(*out, d)
			replies := bytes.TrimSpace(d.Replies)
			if len(replies) > 0 && replies[0] == '{' {
				var sub listing
				if err := json.Unmarshal(replies, &sub); err != nil {
					return fmt.Errorf("decoding replies of %s: %w", d.ID, err)
				}
				if err := flatten(&sub, out, more); err != nil {
					return err
				}
			}
		case "more":
			var m moreData
			if err := json.Unmarshal(t.Data, &m); err != nil {
				return fmt.Errorf("decoding more stub: %w", err)
			}
			*more = append(*more, m.Children...)
		}
	}
	return nil
}

// assemble builds thread entries (direct comments of the link) with their children and grandchildren, in
// creation order. Deeper comments are dropped.
func (c *Client) assemble(linkID string, comments []commentData) []forum.Entry {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedUTC < comments[j].CreatedUTC
	})
	byParent := make(map[string][]*commentData)
	seen := make(map[string]bool)
	for i := range comments {
		d := &comments[i]
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		byParent[d.ParentID] = append(byParent[d.ParentID], d)
	}

	var entries []forum.Entry
	for _, top := range byParent["t3_"+linkID] {
		e := forum.Entry{Post: c.toPost(top), ThreadID: linkID}
		for _, child := range byParent["t1_"+top.ID] {
			r := forum.Reply{Post: c.toPost(child)}
			for _, gc := range byParent["t1_"+child.ID] {
				r.Replies = append(r.Replies, c.toPost(gc))
			}
			e.Children = append(e.Children, r)
		}
		entries = append(entries, e)
	}
	return entries
}
