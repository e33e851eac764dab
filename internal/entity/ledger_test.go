package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPainLedger_AddAndNormalize(t *testing.T) {
	var a, b PainLedger
	a.Add(PainNoWhatsAppLink, "")
	a.Add(PainServiceComplaints, " 3 reviews ")
	a.Add(PainNoWhatsAppLink, "")
	a.Add(PainTag("inventada"), "x")

	b.Add(PainServiceComplaints, "3 reviews")
	b.Add(PainNoWhatsAppLink, "")

	a.Normalize()
	b.Normalize()
	assert.Equal(t, a, b)
	assert.Len(t, a.Findings, 2)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestPainLedger_SellingPoints(t *testing.T) {
	var l PainLedger
	l.Add(PainRedFlag, "casino")
	l.Add(PainNoWebsite, "")
	l.Add(PainSlowSite, "acima de 3s")

	points := l.SellingPoints()
	require.Len(t, points, 2)
	assert.True(t, l.Has(PainRedFlag))
	assert.Equal(t, "no_website; slow_site (acima de 3s)", l.Describe())
	assert.Equal(t, "sin hallazgos", PainLedger{}.Describe())
}
