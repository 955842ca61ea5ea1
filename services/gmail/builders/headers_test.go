package builders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/dto"
)

func TestExtractHeaders(t *testing.T) {
	acc := ExtractHeaders([]dto.MessageHeader{
		{Name: "From", Value: "a@example.com"},
		{Name: "date", Value: "Tue, 10 Mar 2015 14:05:00 +0100"},
		{Name: "SUBJECT", Value: "Quarterly numbers"},
		{Name: "To", Value: "b@example.com"},
	})

	require.NotNil(t, acc.SentDate)
	assert.True(t, time.Date(2015, 3, 10, 13, 5, 0, 0, time.UTC).Equal(*acc.SentDate))
	assert.Equal(t, time.UTC, acc.SentDate.Location())
	assert.Equal(t, "Quarterly numbers", acc.Subject)

	require.Len(t, acc.Headers, 2)
	assert.Equal(t, "From", acc.Headers[0].Name)
	assert.Equal(t, 0, acc.Headers[0].Position)
	assert.Equal(t, "To", acc.Headers[1].Name)
	assert.Equal(t, 1, acc.Headers[1].Position)
}

func TestExtractHeaders_DateWithZoneComment(t *testing.T) {
	acc := ExtractHeaders([]dto.MessageHeader{{Name: "Date", Value: "Wed, 11 Mar 2015 09:00:00 -0800 (PST)"}})

	require.NotNil(t, acc.SentDate)
	assert.True(t, time.Date(2015, 3, 11, 17, 0, 0, 0, time.UTC).Equal(*acc.SentDate))
}

func TestExtractHeaders_InvalidDateIsIgnored(t *testing.T) {
	acc := ExtractHeaders([]dto.MessageHeader{{Name: "Date", Value: "not a date"}})

	assert.Nil(t, acc.SentDate)
	assert.Empty(t, acc.Headers)
}
