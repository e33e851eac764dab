package entity

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaturalKey(t *testing.T) {
	tests := []struct {
		name                     string
		url, biz, phone, website string
		want                     string
	}{
		{"url vence", "https://Maps.Google.com/?cid=1/", "Café", "999", "cafe.pe", "url:https://maps.google.com/?cid=1"},
		{"nome e telefone", "", "Café Lima", "+51 (999) 000-111", "", "tel:cafélima:51999000111"},
		{"nome e site", "", "Café Lima", "", "https://www.CafeLima.pe/", "web:cafélima:cafelima.pe"},
		{"só nome não basta", "", "Café Lima", "", "", ""},
		{"sem nome", "", "  ", "999", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NaturalKey(tt.url, tt.biz, tt.phone, tt.website))
		})
	}
}

func TestNewProspect(t *testing.T) {
	p, err := NewProspect("camp-1", "  Café Lima ")
	require.NoError(t, err)
	assert.Equal(t, "Café Lima", p.BusinessName)
	assert.Equal(t, StatusHunted, p.Status)
	assert.NotEmpty(t, p.ID)

	_, err = NewProspect("camp-1", "   ")
	assert.Error(t, err)
	_, err = NewProspect("", "Café")
	assert.Error(t, err)
}

func TestHasContact(t *testing.T) {
	assert.False(t, (&Prospect{}).HasContact())
	assert.True(t, (&Prospect{Email: "a@b.pe"}).HasContact())
	assert.True(t, (&Prospect{Phone: "999"}).HasContact())
}

func TestAppendTurn_KeepsLastTurns(t *testing.T) {
	var conv []ChatTurn
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxConversationTurns+5; i++ {
		conv = AppendTurn(conv, ChatTurn{Role: "prospect", Text: fmt.Sprintf("m%d", i), At: base.Add(time.Duration(i) * time.Minute)})
	}
	require.Len(t, conv, MaxConversationTurns)
	assert.Equal(t, "m5", conv[0].Text)
	assert.True(t, strings.HasSuffix(conv[len(conv)-1].Text, fmt.Sprint(MaxConversationTurns+4)))
}

func TestContentBundle_Validate(t *testing.T) {
	c := &ContentBundle{
		Subject:         "  " + strings.Repeat("á", MaxSubjectLength+10) + " ",
		Body:            " corpo ",
		LandingHeadline: "titulo",
		LandingBody:     "texto",
	}
	require.NoError(t, c.Validate())
	assert.Len(t, []rune(c.Subject), MaxSubjectLength)
	assert.Equal(t, "corpo", c.Body)

	for _, broken := range []ContentBundle{
		{Body: "b", LandingHeadline: "h", LandingBody: "l"},
		{Subject: "s", LandingHeadline: "h", LandingBody: "l"},
		{Subject: "s", Body: "b", LandingBody: "l"},
		{Subject: "s", Body: "b", LandingHeadline: "h", LandingBody: "\n\t"},
	} {
		b := broken
		assert.Error(t, b.Validate())
	}
}

func TestNewAccessToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := NewAccessToken()
		require.NoError(t, err)
		assert.Len(t, tok, 22)
		assert.NotContains(t, tok, "+")
		assert.NotContains(t, tok, "/")
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
