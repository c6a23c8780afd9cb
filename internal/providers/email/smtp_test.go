package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageWithAttachment(t *testing.T) {
	raw, err := buildMessage("lubeqc@localhost", Message{
		To:      []string{"qa@example.com"},
		Subject: "QA/QC Execution Report - WO# TIN-1 - Green Status 🟢",
		Body:    "line one\nline two",
		Attachments: []Attachment{{
			Name:        "QAQC_TIN-1.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.4 test"),
		}},
	})
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "QA/QC Execution Report - WO# TIN-1 - Green Status 🟢", subject)
	assert.Equal(t, "qa@example.com", parsed.Header.Get("To"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	text, err := reader.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(text)
	require.NoError(t, err)
	assert.Equal(t, "line one\r\nline two", string(body))

	att, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "QAQC_TIN-1.pdf", att.FileName())
	encoded, err := io.ReadAll(att)
	require.NoError(t, err)
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))
}

func TestSMTPProviderSend(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.example.com", Port: 2525, From: "lubeqc@localhost"})
	var gotAddr string
	var gotTo []string
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo = addr, to
		assert.Nil(t, a)
		assert.True(t, strings.HasPrefix(string(msg), "From: lubeqc@localhost\r\n"))
		return nil
	}

	require.NoError(t, p.Send(context.Background(), Message{To: []string{"qa@example.com"}, Subject: "s"}))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, []string{"qa@example.com"}, gotTo)

	assert.Error(t, p.Send(context.Background(), Message{Subject: "s"}))
}

func TestNoOpProvider(t *testing.T) {
	err := (&NoOpProvider{}).Send(context.Background(), Message{To: []string{"qa@example.com"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
