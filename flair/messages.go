package flair

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/modkit/tradeflair/flair/mention"
)

// Reply line templates of the override channel.
const (
	overrideInvalidURL    = "You have submitted an invalid URL: %s"
	overrideNoMention     = "Could not find user mention (/u/[user]) in submitted comment: %s"
	overrideNotFound      = "Could not find submitted comment: %s"
	overrideNoReply       = "Could not find confirmation reply on submitted trade: %s"
	overrideCompleted     = "Trade already completed: %s"
	overrideAdded         = "Trade flair added for %s and %s: %s"
	overrideSuspended     = "Could not add trade flair, %s is suspended: %s"
	modmailFormTitle      = "Trade Confirmation Form"
	modmailFormSubject    = "Trade Confirmation Proof"
	modmailFormDisclaimer = "Please note that if any of the fields above is not filled, " +
		"your Trade Confirmation will most likely not be processed/added. " +
		"This is due to our limited moderation resources."
)

type composeParams struct {
	To      string `url:"to"`
	Subject string `url:"subject,omitempty"`
	Message string `url:"message,omitempty"`
}

// ModmailLink renders a markdown link which opens a message to the moderators, pre-filled with the given
// subject and content.
func ModmailLink(title, subredditPath, subject, content string) string {
	v, err := query.Values(composeParams{To: subredditPath, Subject: subject, Message: content})
	if err != nil {
		// only fails on non-struct input
		panic(err)
	}
	return fmt.Sprintf("[%s](https://www.reddit.com/message/compose?%s)", title, v.Encode())
}

// mentionCorrection picks the corrective message for a mention parse failure.
func (eng *Engine) mentionCorrection(err error) string {
	if errors.Is(err, mention.ErrMultipleMentions) {
		return eng.Config.Messages.MultipleMentions
	}
	return eng.Config.Messages.NoMention
}

// reviewComment is the reply to a participant who failed the age or karma check: the configured warning,
// followed by a link to the proof form.
func (eng *Engine) reviewComment(reason Reason, entryPermalink string) string {
	tc := eng.Config.Trade
	warning := tc.AgeWarning
	if reason == ReasonKarma {
		warning = tc.KarmaWarning
	}
	fields := []string{fmt.Sprintf("Comment link: %s", entryPermalink)}
	for _, proof := range tc.Proofs {
		fields = append(fields, fmt.Sprintf("%s: [REQUIRED]", proof))
	}
	fields = append(fields, modmailFormDisclaimer)
	link := ModmailLink(modmailFormTitle, eng.Config.SubredditPath(), modmailFormSubject, strings.Join(fields, "\n\n"))
	lines := []string{
		warning,
		fmt.Sprintf("To verify this trade please fill out this %s. "+
			"Please note that you need to fill out the full form as provided with no additions or removals.", link),
	}
	return strings.Join(lines, "\n\n")
}
