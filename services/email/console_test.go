package emailsvc

import (
	"bytes"
	"io"
	"log"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
)

func newTestService(t *testing.T) consoleService {
	conf := core.NewTestConfig()
	conf.AppName = "Mahudhurio"
	return consoleService{
		defaultFromEmail: mail.Address{Name: "Mahudhurio", Address: "noreply@mahudhurio.test"},
		subjPrefix:       "[Mahudhurio] ",
		appName:          conf.AppName,
		logger:           logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", log.LstdFlags), conf),
	}
}

func Test_consoleService_format(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name      string
		msg       core.EmailMessage
		wantParts []string
		notParts  []string
	}{
		{
			name: "text only",
			msg: core.EmailMessage{
				To:          []mail.Address{{Name: "Jane", Address: "jane@test.tz"}},
				Subject:     "Welcome",
				TextContent: "hello",
			},
			wantParts: []string{"Subject: [Mahudhurio] Welcome", "To: \"Jane\" <jane@test.tz>", "text/plain; charset=utf-8", "hello"},
			notParts:  []string{"text/html", "CC:", "BCC:"},
		},
		{
			name: "html & attachment",
			msg: core.EmailMessage{
				To:          []mail.Address{{Address: "jane@test.tz"}},
				Cc:          []mail.Address{{Address: "admin@test.tz"}},
				Subject:     "Report",
				TextContent: "see attached",
				HTMLContent: "<p>see attached</p>",
				Attachments: []core.Attachment{{Content: bytes.NewBufferString("YQ=="), ContentType: "text/csv", Filename: "march.csv"}},
			},
			wantParts: []string{"CC: <admin@test.tz>", "text/html; charset=utf-8", "<p>see attached</p>", "filename=march.csv", "YQ=="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := svc.format(tt.msg)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, "From: \"Mahudhurio\" <noreply@mahudhurio.test>\r\n"), out)
			for _, part := range tt.wantParts {
				assert.Contains(t, out, part)
			}
			for _, part := range tt.notParts {
				assert.NotContains(t, out, part)
			}
		})
	}
}

func TestConsoleServiceMock(t *testing.T) {
	ResetSentMessages()
	svc := &consoleServiceMock{consoleService: newTestService(t)}
	svc.disableOutput = true

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "jane@test.tz"}}, Subject: "Hi", BodyStr: "hello"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "lost"},
		&core.EmailMessage{To: []mail.Address{{Address: "jane@test.tz"}}, Subject: "empty"},
	)

	sent := LastSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hi", sent[0].Subject)
	assert.Equal(t, "hello", sent[0].TextContent)
}
