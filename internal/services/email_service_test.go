package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAWSSESEmailService_SendPasswordResetEmail(t *testing.T) {
	var captured *ses.SendEmailInput
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		},
	}
	svc := NewSESEmailServiceWithClient(client, "no-reply@kafedra.az", "https://kafedra.az/reset-password", discardLogger())

	err := svc.SendPasswordResetEmail(context.Background(), "leyla@kafedra.az", "tok/en+1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "no-reply@kafedra.az", aws.ToString(captured.Source))
	assert.Equal(t, []string{"leyla@kafedra.az"}, captured.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(captured.Message.Body.Text.Data), "https://kafedra.az/reset-password?token=tok%2Fen%2B1")
	assert.Contains(t, aws.ToString(captured.Message.Body.Html.Data), "60 minutes")
}

func TestAWSSESEmailService_SendFailure(t *testing.T) {
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
			return nil, errors.New("MessageRejected")
		},
	}
	svc := NewSESEmailServiceWithClient(client, "no-reply@kafedra.az", "https://kafedra.az/reset-password", discardLogger())

	err := svc.SendPasswordResetEmail(context.Background(), "leyla@kafedra.az", "t", time.Now().Add(time.Hour))
	assert.Error(t, err)
}

func TestLogEmailService(t *testing.T) {
	tests := []struct {
		env       string
		showsLink bool
	}{
		{env: "development", showsLink: true},
		{env: "production", showsLink: false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			svc := NewLogEmailService("http://localhost:3000/reset-password", tt.env, logger)

			require.NoError(t, svc.SendPasswordResetEmail(context.Background(), "leyla@kafedra.az", "0a1b2c3d", time.Now()))

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "l****@*******.az", entry["email"])
			if tt.showsLink {
				assert.Equal(t, "http://localhost:3000/reset-password?token=0a1b2c3d", entry["reset_link"])
			} else {
				assert.Equal(t, "[REDACTED]", entry["reset_link"])
				assert.NotContains(t, buf.String(), "0a1b2c3d")
			}
		})
	}
}
