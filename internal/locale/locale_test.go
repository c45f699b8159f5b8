package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPhrasebook(t *testing.T) {
	pb, err := Default()
	require.NoError(t, err)

	for _, lang := range []string{"en", "hi", "ml"} {
		assert.NotEmpty(t, pb.Welcome(lang), lang)
		assert.NotEmpty(t, pb.DefaultResponse(lang), lang)
		assert.NotEmpty(t, pb.ErrorMessage(lang), lang)
		assert.Len(t, pb.QuickQuestions(lang), 4, lang)
		assert.NotEmpty(t, pb.DefaultAnswers(lang), lang)
	}
}

func TestNormalize(t *testing.T) {
	pb, err := Default()
	require.NoError(t, err)

	tests := []struct {
		tag  string
		want string
	}{
		{"en", "en"},
		{"hi-IN", "hi"},
		{" ML ", "ml"},
		{"ta", "en"},
		{"", "en"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, pb.Normalize(tc.tag), tc.tag)
	}
}

func TestMatchFAQ(t *testing.T) {
	pb, err := Default()
	require.NoError(t, err)

	e, ok := pb.MatchFAQ("en", "What documents do I need?")
	require.True(t, ok)
	assert.Equal(t, "what documents do i need", e.Key)
	assert.Len(t, e.Suggestions, 3)

	// A fragment of a key matches too.
	e, ok = pb.MatchFAQ("en", "emergency contact")
	require.True(t, ok)
	assert.Equal(t, "emergency contact information", e.Key)

	_, ok = pb.MatchFAQ("en", "i")
	assert.False(t, ok)

	_, ok = pb.MatchFAQ("en", "   ")
	assert.False(t, ok)

	_, ok = pb.MatchFAQ("en", "Tell me a joke")
	assert.False(t, ok)

	e, ok = pb.MatchFAQ("hi", "मैं पंजीकरण कैसे करूं?")
	require.True(t, ok)
	assert.NotEmpty(t, e.Answer)
}

func TestParseRejectsMissingFallback(t *testing.T) {
	_, err := Parse([]byte("fallback: fr\nlanguages:\n  en:\n    welcome: hi\n"))
	require.Error(t, err)

	_, err = Parse([]byte("languages: {}\n"))
	require.Error(t, err)
}

func TestBlankTextsFallBackToDefaultLanguage(t *testing.T) {
	pb, err := Parse([]byte(`
fallback: en
languages:
  en:
    welcome: Hello
    default_response: Default
    error_message: Oops
    quick_questions: [one]
  hi:
    welcome: Namaste
`))
	require.NoError(t, err)

	assert.Equal(t, "Namaste", pb.Welcome("hi"))
	assert.Equal(t, "Oops", pb.ErrorMessage("hi"))
	assert.Equal(t, []string{"one"}, pb.QuickQuestions("hi"))
}
