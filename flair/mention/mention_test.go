package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		key  string
		name string
		err  error
	}{
		{text: "/u/Alice", key: "alice", name: "Alice"},
		{text: "u/bob please confirm", key: "bob", name: "bob"},
		{text: "traded with /user/Some_Body-1 today", key: "some_body-1", name: "Some_Body-1"},
		{text: "/u/Alice and again /u/alice", key: "alice", name: "Alice"},
		{text: "/u/Alice /u/Bob", err: ErrMultipleMentions},
		{text: "[Alice](/u/Alice)", err: ErrExplicitLink},
		{text: "[/u/Alice](https://example.com/u/Mallory)", err: ErrExplicitLink},
		{text: "no mention here", err: ErrNoMention},
		{text: "", err: ErrNoMention},
		{text: "trade with reddit.com/u/bob", key: "bob", name: "bob"},
		{text: "hi/u/bob", key: "bob", name: "bob"},
		{text: "/u/alice/u/bob", err: ErrMultipleMentions},
		{text: "/u/alice/u/Alice", key: "alice", name: "alice"},
		{text: "menu/item", err: ErrNoMention},
		{text: "／ｕ／Ａｌｉｃｅ", key: "alice", name: "Alice"},
	}

	for _, fix := range fixtures {
		m, err := Parse(fix.text)
		if fix.err != nil {
			assert.ErrorIs(err, fix.err, fix.text)
			continue
		}
		assert.NoError(err, fix.text)
		assert.Equal(fix.key, m.Key, fix.text)
		assert.Equal(fix.name, m.Name, fix.text)
	}
}

func TestMatches(t *testing.T) {
	assert := assert.New(t)

	m, err := Parse("/u/Alice")
	assert.NoError(err)
	assert.True(m.Matches("ALICE"))
	assert.False(m.Matches("alicia"))
	assert.False(Mention{}.Matches(""))
}

func TestHasLooseMention(t *testing.T) {
	assert := assert.New(t)

	assert.True(HasLooseMention("[Alice](/u/Alice)"))
	assert.True(HasLooseMention("/U/one /u/two"))
	assert.False(HasLooseMention("nothing to see"))
}

func TestContainsWord(t *testing.T) {
	assert := assert.New(t)

	assert.True(ContainsWord("Confirmed, thanks!", "confirmed"))
	assert.True(ContainsWord("CONFIRMED", "confirmed"))
	assert.True(ContainsWord("ｃｏｎｆｉｒｍｅｄ", "confirmed"))
	assert.False(ContainsWord("ok!", "confirmed"))
	assert.True(ContainsWord("anything", ""))
}
