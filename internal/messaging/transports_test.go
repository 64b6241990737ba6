package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/BTreeMap/ComplaintDesk/internal/twiliowhatsapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwilioWebhookEmitsEvent(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	require.NoError(t, svc.Send(context.Background(), "79990001122", models.Prompt("Choose:",
		models.Button{Label: "House problem", ChoiceID: "house_problem"},
	)))
	assert.Equal(t, "Choose:\n1. House problem", mock.Messages()[0].Body)

	form := url.Values{"From": {"whatsapp:+79990001122"}, "Body": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	svc.TwilioWebhookHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	ev := receiveEvent(t, svc.Events())
	assert.Equal(t, "79990001122", ev.UserID)
	assert.Equal(t, models.EventMenuSelect, ev.Kind)
	assert.Equal(t, "house_problem", ev.Choice)
}

func TestTwilioWebhookRejectsBadRequests(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	rr := httptest.NewRecorder()
	svc.TwilioWebhookHandler(rr, httptest.NewRequest(http.MethodGet, "/twilio/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	form := url.Values{"From": {"whatsapp:+79990001122"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	svc.TwilioWebhookHandler(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msgs == nil {
		f.msgs = make(map[string][][]byte)
	}
	f.msgs[subject] = append(f.msgs[subject], data)
	return nil
}

func TestNATSServicePublishesStructuredReplies(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewNATSService(nil, WithPublisher(pub), WithNATSSubjects("in", "out"))

	reply := models.Prompt("Choose:", models.Button{Label: "Back", ChoiceID: "back_to_start"})
	require.NoError(t, svc.Send(context.Background(), "tg-42", reply))

	require.Len(t, pub.msgs["out"], 1)
	var out models.OutboundMessage
	require.NoError(t, json.Unmarshal(pub.msgs["out"][0], &out))
	assert.Equal(t, "tg-42", out.UserID)
	assert.Equal(t, reply, out.Reply)
}

func TestNATSServiceHandleMessage(t *testing.T) {
	svc := NewNATSService(nil)

	svc.handleMessage([]byte(`not json`))
	svc.handleMessage([]byte(`{"user_id":"","kind":"text_input","text":"x"}`))
	svc.handleMessage([]byte(`{"user_id":"tg-42","kind":"menu_select","choice":"water_leak"}`))

	ev := receiveEvent(t, svc.Events())
	assert.Equal(t, "tg-42", ev.UserID)
	assert.Equal(t, models.EventMenuSelect, ev.Kind)
	assert.Equal(t, "water_leak", ev.Choice)
	assert.False(t, ev.Time.IsZero())

	require.NoError(t, svc.Stop())
	assert.ErrorIs(t, svc.Send(context.Background(), "tg-42", models.PlainMessage("x")), ErrServiceStopped)
}

func TestConsoleServiceStartEmitsEvents(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleService(strings.NewReader("/start\nhello\n/weather\n"), &out)
	require.NoError(t, svc.Start(context.Background()))

	var got []models.Event
	for ev := range svc.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, models.EventCommand, got[0].Kind)
	assert.Equal(t, "hello", got[1].Text)
	assert.Contains(t, out.String(), "Unknown command")
}

// scriptedHandler answers every event with a one-button prompt.
type scriptedHandler struct {
	events []models.Event
}

func (h *scriptedHandler) Handle(ctx context.Context, ev models.Event) ([]models.Reply, error) {
	h.events = append(h.events, ev)
	return []models.Reply{models.Prompt("Pick", models.Button{Label: "Only", ChoiceID: "only"})}, nil
}

func TestConsoleServiceServeRendersBeforeNextLine(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleService(strings.NewReader("hi\n1\n"), &out)
	h := &scriptedHandler{}

	svc.Serve(context.Background(), h)

	require.Len(t, h.events, 2)
	assert.Equal(t, models.EventTextInput, h.events[0].Kind)
	assert.Equal(t, models.EventMenuSelect, h.events[1].Kind)
	assert.Equal(t, "only", h.events[1].Choice)
	assert.Contains(t, out.String(), "Pick\n1. Only")
}
