// Cooldown between submissions of the same participant.
//
// Each submission is sorted into a group (by title pattern), and each group can have a cooldown: a
// participant whose previous submission in the same group is more recent than the cooldown gets the new one
// removed. The exception is a quick re-post of a submission which was itself removed (eg, to fix a title),
// which is let through when it comes within the grace window.
package cooldown

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/modkit/tradeflair/config"
	"github.com/modkit/tradeflair/forum"
)

type Decision int

const (
	// group has no cooldown, or first submission of the participant in the group
	Untracked Decision = iota
	Allowed
	Grace
	Violation
)

func (d Decision) String() string {
	switch d {
	case Untracked:
		return "untracked"
	case Allowed:
		return "allowed"
	case Grace:
		return "grace"
	case Violation:
		return "violation"
	default:
		return "unknown"
	}
}

type Verdict struct {
	Decision Decision
	Group    string
	// Id of the previous submission in the group, if any.
	PreviousID string
	// Only set on Violation.
	RemainingHours int
}

// Subset of forum access used by the checker.
type Forum interface {
	NewSubmissions(ctx context.Context, limit int) ([]forum.Submission, error)
	IsRemoved(ctx context.Context, submissionID string) (bool, error)
	Remove(ctx context.Context, itemID string) error
	Reply(ctx context.Context, parentID, body string) (string, error)
	Report(ctx context.Context, itemID, reason string) error
}

type groupPattern struct {
	name  string
	regex *regexp.Regexp
}

type Checker struct {
	Logger *slog.Logger
	Store  Store
	Forum  Forum
	Config config.CooldownConfig
	// Markdown links appended to the removal message.
	RulesLink   string
	ModmailLink string

	groups []groupPattern
	seen   map[string]bool
}

func NewChecker(logger *slog.Logger, store Store, f Forum, cfg config.CooldownConfig) (*Checker, error) {
	c := &Checker{
		Logger: logger,
		Store:  store,
		Forum:  f,
		Config: cfg,
		seen:   make(map[string]bool),
	}
	for _, g := range cfg.Groups {
		if g.TitlePattern == "" {
			continue
		}
		re, err := regexp.Compile(g.TitlePattern)
		if err != nil {
			return nil, fmt.Errorf("cooldown group %s: %w", g.Name, err)
		}
		c.groups = append(c.groups, groupPattern{name: g.Name, regex: re})
	}
	return c, nil
}

// CleanTitle normalizes a submission title before pattern matching: unicode look-alikes folded and runs of
// whitespace collapsed.
func CleanTitle(title string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(title)), " ")
}

// Group returns the first group whose pattern matches the title, or the default group.
func (c *Checker) Group(title string) string {
	clean := CleanTitle(title)
	for _, g := range c.groups {
		if g.regex.MatchString(clean) {
			return g.name
		}
	}
	return c.Config.DefaultGroup
}

// Evaluate decides on a submission, without side-effects.
func (c *Checker) Evaluate(ctx context.Context, sub *forum.Submission) (Verdict, error) {
	group := c.Group(sub.Title)
	v := Verdict{Decision: Untracked, Group: group}
	cooldown, ok := c.Config.CooldownFor(group)
	if !ok || sub.Author == "" {
		return v, nil
	}
	last, err := c.Store.Last(ctx, sub.Author, group)
	if err != nil {
		return v, err
	}
	if last == nil {
		return v, nil
	}
	v.PreviousID = last.LastID
	v.Decision = Allowed
	if last.LastID == sub.ID {
		return v, nil
	}

	elapsed := sub.CreatedAt.Sub(last.LastCreated)
	if elapsed < time.Duration(c.Config.LowerMin)*time.Minute {
		removed, err := c.Forum.IsRemoved(ctx, last.LastID)
		if err != nil {
			return v, err
		}
		if removed {
			v.Decision = Grace
			return v, nil
		}
	}
	if elapsed < cooldown {
		v.Decision = Violation
		v.RemainingHours = RemainingHours(cooldown, elapsed)
	}
	return v, nil
}

// RemainingHours rounds up the rest of the cooldown, with an extra hour for good measure.
func RemainingHours(cooldown, elapsed time.Duration) int {
	return int(math.Ceil(cooldown.Hours()-elapsed.Hours())) + 1
}

// Enforce evaluates a submission and acts on the result: violations are removed, answered and reported,
// everything else becomes the participant's latest submission in the group.
func (c *Checker) Enforce(ctx context.Context, sub *forum.Submission) (Verdict, error) {
	v, err := c.Evaluate(ctx, sub)
	if err != nil {
		return v, err
	}
	logger := c.Logger.With("submission", sub.ID, "author", sub.Author, "group", v.Group, "decision", v.Decision.String())

	switch v.Decision {
	case Violation:
		logger.Info("submission removed for cooldown violation", "previous", v.PreviousID, "remaining_hours", v.RemainingHours)
		if err := c.Forum.Remove(ctx, sub.ID); err != nil {
			return v, fmt.Errorf("removing submission: %w", err)
		}
		replyID, err := c.Forum.Reply(ctx, sub.ID, c.removalMessage(v))
		if err != nil {
			logger.Warn("failed to reply to removed submission", "err", err)
			return v, nil
		}
		if err := c.Forum.Report(ctx, replyID, "Repost, link to previous post: https://redd.it/"+v.PreviousID); err != nil {
			logger.Warn("failed to report removal reply", "err", err)
		}
		return v, nil
	case Grace:
		logger.Info("submission allowed in grace period", "previous", v.PreviousID)
	}

	if _, ok := c.Config.CooldownFor(v.Group); !ok || sub.Author == "" {
		return v, nil
	}
	if err := c.Store.Save(ctx, sub.Author, v.Group, sub.ID, sub.CreatedAt); err != nil {
		return v, fmt.Errorf("saving latest submission: %w", err)
	}
	return v, nil
}

func (c *Checker) removalMessage(v Verdict) string {
	return fmt.Sprintf("Your submission has automatically been removed violating the cooldown period for %s submissions. "+
		"You will need to wait at least another %d hours before submitting a new submission.\n\n"+
		"Note that repeated violations of this rule can result in a temporary suspension, "+
		"so please keep track of your submission times in the future.\n\n"+
		"For more information regarding the general posting rules, such as cooldowns, please read the %s.\n\n"+
		"If you think this removal was made in error, please send a %s.",
		v.Group, v.RemainingHours, c.RulesLink, c.ModmailLink)
}

type RunSummary struct {
	Checked    int
	Violations int
}

// Run enforces the cooldown on the newest submissions, skipping any this Checker has already seen. Oldest
// are handled first, so that the stored "latest submission" moves forward in time.
func (c *Checker) Run(ctx context.Context, limit int) (*RunSummary, error) {
	subs, err := c.Forum.NewSubmissions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching new submissions: %w", err)
	}
	summary := &RunSummary{}
	for i := len(subs) - 1; i >= 0; i-- {
		sub := subs[i]
		if c.seen[sub.ID] || sub.Removed {
			continue
		}
		v, err := c.Enforce(ctx, &sub)
		if err != nil {
			return summary, err
		}
		c.seen[sub.ID] = true
		summary.Checked++
		if v.Decision == Violation {
			summary.Violations++
		}
	}
	return summary, nil
}
