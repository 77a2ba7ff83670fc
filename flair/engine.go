package flair

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/purell"

	"github.com/modkit/tradeflair/config"
	"github.com/modkit/tradeflair/flair/countstore"
	"github.com/modkit/tradeflair/flair/flagstore"
	"github.com/modkit/tradeflair/flair/ledger"
	"github.com/modkit/tradeflair/forum"
)

// runtime for scanning threads, processing overrides, and recording the outcomes.
//
// Forum, Ledger, Counters, Flags and Config must all be set. Notifier is optional.
type Engine struct {
	Logger   *slog.Logger
	Forum    forum.Forum
	Ledger   ledger.Store
	Counters countstore.CountStore
	Flags    flagstore.FlagStore
	Notifier Notifier
	Config   *config.Config
	// Clock for account age checks. Defaults to time.Now.
	Now func() time.Time

	permalinkRegex *regexp.Regexp
}

func (eng *Engine) now() time.Time {
	if eng.Now != nil {
		return eng.Now()
	}
	return time.Now()
}

func (eng *Engine) permalinkPattern() (*regexp.Regexp, error) {
	if eng.permalinkRegex != nil {
		return eng.permalinkRegex, nil
	}
	re, err := eng.Config.PermalinkRegexp()
	if err != nil {
		return nil, err
	}
	eng.permalinkRegex = re
	return re, nil
}

// PermalinkID extracts the item id from a permalink, or returns "" if the text is not a valid permalink.
func (eng *Engine) PermalinkID(text string) (string, error) {
	re, err := eng.permalinkPattern()
	if err != nil {
		return "", err
	}
	m := re.FindStringSubmatch(normalizePermalink(text))
	if len(m) < 2 {
		return "", nil
	}
	return m[1], nil
}

// normalizePermalink cleans up links as pasted from a browser or share button: host case, default ports,
// fragments, query strings, doubled slashes and a missing trailing slash. Text that is not an http(s) URL is
// returned unchanged.
func normalizePermalink(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(strings.ToLower(text), "http") {
		return text
	}
	clean, err := purell.NormalizeURLString(text, purell.FlagLowercaseScheme|purell.FlagLowercaseHost|purell.FlagRemoveDefaultPort|purell.FlagRemoveFragment|purell.FlagRemoveDuplicateSlashes|purell.FlagAddTrailingSlash)
	if err != nil {
		return text
	}
	u, err := url.Parse(clean)
	if err != nil {
		return clean
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}
