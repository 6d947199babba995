package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tukerin/backend/core"
	testutil "github.com/tukerin/backend/tests"
)

func TestConsoleService_send(t *testing.T) {
	conf := testutil.NewConfig()
	logs := new(bytes.Buffer)
	svc := NewConsoleService(conf, testutil.NewLogger(logs, conf))

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Siti", Address: "siti@tuker.in"}},
		Subject: "Eco week",
		BodyStr: "Bring your bottles",
	}
	require.True(t, svc.sendMessage(msg))

	out := logs.String()
	assert.Contains(t, out, "Subject: [Tuker.in] Eco week\r\n")
	assert.Contains(t, out, `To: "Siti" <siti@tuker.in>`)
	assert.Contains(t, out, "Bring your bottles\r\n")
	assert.NotContains(t, out, "text/html")
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := testutil.NewConfig()
	logs := new(bytes.Buffer)
	logger := testutil.NewLogger(logs, conf)
	core.ParseEmailTemplates(logger, true)
	svc := NewConsoleServiceMock(conf, logger)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Siti", Address: "siti@tuker.in"}},
			Subject:      "Eco week",
			TemplateName: "notification",
			TemplateData: map[string]string{"Name": "Siti", "Title": "Eco week", "Message": "Bring your bottles", "Deadline": ""},
		},
		// no recipient
		&core.EmailMessage{Subject: "Lost", BodyStr: "nobody reads this"},
		// unknown template
		&core.EmailMessage{To: []mail.Address{{Address: "budi@tuker.in"}}, TemplateName: "nope"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0].TextContent, "Hi Siti,"))
	assert.Contains(t, sent[0].TextContent, "Bring your bottles")
	assert.Contains(t, sent[0].HTMLContent, "Bring your bottles")

	// the mock prints nothing but rendering errors
	assert.NotContains(t, logs.String(), "Subject:")
	assert.Contains(t, logs.String(), `email template "nope" not found`)
}
