package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

type fakeSendGrid struct {
	status int
	err    error
	sent   []*mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	if sender := NewSendGridSender(SendGridConfig{FromEmail: "bot@example.com"}, nil); sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "bot@example.com"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Errorf("expected default from name %q, got %q", defaultFromName, sender.fromName)
	}
}

func TestSendGridSender_Send(t *testing.T) {
	api := &fakeSendGrid{status: 202}
	sender := newSendGridSender(api, SendGridConfig{FromEmail: "bot@example.com"}, logging.Discard())

	err := sender.Send(context.Background(), EmailMessage{To: "sam@example.com", Subject: "hello", Body: "text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(api.sent))
	}
	if got := api.sent[0].Subject; got != "hello" {
		t.Errorf("subject = %q", got)
	}
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	sender := newSendGridSender(&fakeSendGrid{status: 401}, SendGridConfig{}, logging.Discard())
	if err := sender.Send(context.Background(), EmailMessage{To: "sam@example.com"}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestSendGridSender_TransportError(t *testing.T) {
	sender := newSendGridSender(&fakeSendGrid{err: errors.New("dial tcp")}, SendGridConfig{}, logging.Discard())
	if err := sender.Send(context.Background(), EmailMessage{To: "sam@example.com"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSendGridSender_NilClient(t *testing.T) {
	var sender *SendGridSender
	if err := sender.Send(context.Background(), EmailMessage{}); err == nil {
		t.Fatal("expected error for nil sender")
	}
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "bot@example.com", FromName: "Booker"}, logging.Discard())

	err := sender.Send(context.Background(), EmailMessage{To: "sam@example.com", Subject: "s", Body: "b", HTML: "<p>b</p>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := api.inputs[0]
	if got := aws.ToString(in.FromEmailAddress); got != "Booker <bot@example.com>" {
		t.Errorf("from = %q", got)
	}
	if in.Content.Simple.Body.Text == nil || in.Content.Simple.Body.Html == nil {
		t.Error("expected both text and html parts")
	}
}

func TestSESSender_NilClient(t *testing.T) {
	if sender := NewSESSender(nil, SESConfig{}, nil); sender != nil {
		t.Error("expected nil sender for nil client")
	}
}

func TestSESSender_Error(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{}, logging.Discard())
	if err := sender.Send(context.Background(), EmailMessage{To: "sam@example.com"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestStubEmailSender(t *testing.T) {
	if err := NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "x@example.com"}); err != nil {
		t.Fatalf("stub should not fail: %v", err)
	}
}
