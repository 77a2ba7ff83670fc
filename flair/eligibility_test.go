package flair

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modkit/tradeflair/forum"
)

func TestCheckPair(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mf := EngineTestFixture()

	mf.AddProfile(EligibleProfile("veteran"))
	mf.AddProfile(newAccount("newbie"))
	mf.AddProfile(forum.Profile{Name: "lowkarma", CreatedAt: FixtureNow.AddDate(-1, 0, 0), LinkKarma: 10, CommentKarma: 10})
	mf.AddProfile(forum.Profile{Name: "freshpoor", CreatedAt: FixtureNow.AddDate(0, 0, -2)})

	fixtures := []struct {
		name        string
		entry       forum.Post
		reply       forum.Post
		reason      Reason
		participant string
	}{
		{
			name:  "both eligible",
			entry: forum.Post{ID: "e1", Author: "veteran"},
			reply: forum.Post{ID: "r1", Author: "veteran"},
		},
		{
			name:  "enough trades skips numeric checks",
			entry: forum.Post{ID: "e1", Author: "veteran"},
			reply: forum.Post{ID: "r1", Author: "freshpoor", AuthorBadge: "i-5"},
		},
		{
			name:  "opaque badge skips numeric checks",
			entry: forum.Post{ID: "e1", Author: "freshpoor", AuthorBadge: "Moderator"},
			reply: forum.Post{ID: "r1", Author: "veteran"},
		},
		{
			name:        "age failure wins over karma",
			entry:       forum.Post{ID: "e1", Author: "veteran"},
			reply:       forum.Post{ID: "r1", Author: "freshpoor"},
			reason:      ReasonAge,
			participant: "freshpoor",
		},
		{
			name:        "karma failure",
			entry:       forum.Post{ID: "e1", Author: "lowkarma", AuthorBadge: "i-2"},
			reply:       forum.Post{ID: "r1", Author: "veteran"},
			reason:      ReasonKarma,
			participant: "lowkarma",
		},
		{
			name:        "first failing participant short-circuits",
			entry:       forum.Post{ID: "e1", Author: "newbie"},
			reply:       forum.Post{ID: "r1", Author: "lowkarma"},
			reason:      ReasonAge,
			participant: "newbie",
		},
		{
			name:        "unknown account counts as suspended",
			entry:       forum.Post{ID: "e1", Author: "veteran"},
			reply:       forum.Post{ID: "r1", Author: "ghost", AuthorBadge: "i-50"},
			reason:      ReasonSuspended,
			participant: "ghost",
		},
		{
			name:        "moderator removal fails even with many trades",
			entry:       forum.Post{ID: "e1", Author: "veteran", AuthorBadge: "i-50", Removed: true},
			reply:       forum.Post{ID: "r1", Author: "veteran"},
			reason:      ReasonRemoved,
			participant: "veteran",
		},
	}

	for _, fix := range fixtures {
		sc := eng.NewScanContext("test")
		v, err := eng.CheckPair(ctx, sc, &fix.entry, &fix.reply)
		assert.NoError(err, fix.name)
		if fix.reason == ReasonNone {
			assert.True(v.Pass, fix.name)
			continue
		}
		assert.False(v.Pass, fix.name)
		assert.Equal(fix.reason, v.Reason, fix.name)
		assert.Equal(fix.participant, v.Participant, fix.name)
	}
}

func TestCheckPairOverrideMode(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mf := EngineTestFixture()
	mf.AddProfile(newAccount("newbie"))

	sc := eng.NewScanContext("test")
	entry := forum.Post{ID: "e1", Author: "newbie", Removed: true}
	reply := forum.Post{ID: "r1", Author: "newbie"}
	v, err := eng.checkPair(ctx, sc, &entry, &reply, true)
	assert.NoError(err)
	assert.True(v.Pass)

	reply.Author = "ghost"
	v, err = eng.checkPair(ctx, sc, &entry, &reply, true)
	assert.NoError(err)
	assert.Equal(ReasonSuspended, v.Reason)
}

func TestScanContextCredit(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()

	sc := eng.NewScanContext("test")
	p := forum.Post{Author: "Alice", AuthorBadge: "i-2"}
	assert.Equal(2, sc.Credit(&p, "i-").Trades())

	// cached per lower-cased name, for the rest of the scan
	q := forum.Post{Author: "alice", AuthorBadge: "i-9"}
	assert.Equal(2, sc.Credit(&q, "i-").Trades())

	// a new scan starts fresh
	sc = eng.NewScanContext("test")
	assert.Equal(9, sc.Credit(&q, "i-").Trades())
}
