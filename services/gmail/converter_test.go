package gmail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
)

func TestToMessageFullInfo_NestedParts(t *testing.T) {
	m := &gmailapi.Message{
		Id:       "m1",
		ThreadId: "t1",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Headers:  []*gmailapi.MessagePartHeader{{Name: "Subject", Value: "hi"}},
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: "YQ"}},
				{MimeType: "application/pdf", Filename: "a.pdf", Body: &gmailapi.MessagePartBody{AttachmentId: "att1", Size: 10}},
			},
		},
	}

	info := toMessageFullInfo(m)

	assert.Equal(t, []string{}, info.LabelIDs)
	require.NotNil(t, info.Payload)
	require.Len(t, info.Payload.Parts, 2)
	assert.Equal(t, "YQ", info.Payload.Parts[0].Body.Data)
	assert.Equal(t, "att1", info.Payload.Parts[1].Body.AttachmentID)
	assert.Equal(t, "a.pdf", info.Payload.Parts[1].Filename)
	assert.NoError(t, info.Validate())
}

func TestToMessageFullInfo_MissingPayloadFailsValidation(t *testing.T) {
	info := toMessageFullInfo(&gmailapi.Message{Id: "m1", ThreadId: "t1"})
	assert.Nil(t, info.Payload)
	assert.Error(t, info.Validate())
}
