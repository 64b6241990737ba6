package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/BTreeMap/ComplaintDesk/internal/whatsapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

var (
	_ Service = (*WhatsAppService)(nil)
	_ Service = (*TwilioService)(nil)
	_ Service = (*NATSService)(nil)
	_ Service = (*ConsoleService)(nil)
)

func receiveEvent(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
		return models.Event{}
	}
}

func TestWhatsAppServiceSendRendersKeyboard(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)

	err := svc.Send(context.Background(), "+7 999 000-11-22", models.Prompt("Enter floor:",
		models.Button{Label: "1", ChoiceID: "floor_1"},
		models.Button{Label: "2", ChoiceID: "floor_2"},
	))
	require.NoError(t, err)

	msgs := mockClient.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "79990001122", msgs[0].To)
	assert.Equal(t, "Enter floor:\n1. 1\n2. 2", msgs[0].Body)

	svc.handleIncomingText("79990001122", "2")
	ev := receiveEvent(t, svc.Events())
	assert.Equal(t, models.EventMenuSelect, ev.Kind)
	assert.Equal(t, "floor_2", ev.Choice)
	assert.Equal(t, "79990001122", ev.UserID)
}

func TestWhatsAppServiceHandleIncomingMessage(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	text := "Ivanov I.I."

	msg := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Sender: types.NewJID("79990001122", types.DefaultUserServer)},
		},
		Message: &waE2E.Message{Conversation: &text},
	}
	svc.handleIncomingMessage(msg)

	ev := receiveEvent(t, svc.Events())
	assert.Equal(t, models.EventTextInput, ev.Kind)
	assert.Equal(t, "Ivanov I.I.", ev.Text)

	// Own messages and non-text messages are skipped.
	own := *msg
	own.Info.IsFromMe = true
	svc.handleIncomingMessage(&own)
	svc.handleIncomingMessage(&events.Message{Info: msg.Info, Message: &waE2E.Message{}})
	select {
	case ev := <-svc.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestWhatsAppServiceStartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())

	_, ok := <-svc.Events()
	assert.False(t, ok, "events channel must be closed")
	assert.ErrorIs(t, svc.Send(context.Background(), "79990001122", models.PlainMessage("x")), ErrServiceStopped)
}

func TestCanonicalizePhone(t *testing.T) {
	got, err := CanonicalizePhone("+1 (555) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, "15551234567", got)

	_, err = CanonicalizePhone("")
	assert.Error(t, err)
	_, err = CanonicalizePhone("abc")
	assert.Error(t, err)
	_, err = CanonicalizePhone("123")
	assert.Error(t, err)
}
