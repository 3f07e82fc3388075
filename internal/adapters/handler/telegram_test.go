package handler

import (
	"context"
	"errors"
	"pixrelay/internal/core/domain"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTextSender struct{ mock.Mock }

func (m *MockTextSender) SendMessageReply(ctx context.Context, msg *domain.ChatMessage, text string) (int, error) {
	args := m.Called(ctx, msg, text)
	return args.Int(0), args.Error(1)
}

func (m *MockTextSender) SendChatAction(_ context.Context, _ int64, _ domain.Action) {}

func (m *MockTextSender) NotifyAndReturnError(_ context.Context, err error, msg *domain.ChatMessage) error {
	m.Called(err, msg)
	return err
}

type MockImageSender struct{ mock.Mock }

func (m *MockImageSender) SendImageFileReply(ctx context.Context, msg *domain.ChatMessage, file []byte,
	filename string) error {
	args := m.Called(ctx, msg, file, filename)
	return args.Error(0)
}

type stubUsage struct {
	mu    sync.Mutex
	usage domain.Usage
	reset time.Time
}

func (s *stubUsage) Record(_ int64, delivered domain.Candidate) {
	s.mu.Lock()
	s.usage.Images++
	s.usage.Bytes += int64(delivered.Size())
	s.mu.Unlock()
}

func (s *stubUsage) Usage(_ int64) (domain.Usage, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.usage, s.reset
}

func makeUpdate(txt string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   1,
			Text: txt,
			Chat: models.Chat{ID: 100},
			From: &models.User{ID: 200, Username: "bob", FirstName: "bob"},
		},
	}
}

func TestTelegram_Respond(t *testing.T) {
	winner := domain.NewCandidate([]byte("avif"), "image/avif", domain.RelaySource("wsrv"))

	tests := []struct {
		name      string
		text      string
		mockSetup func(o *MockOrchestrator, ts *MockTextSender, is *MockImageSender)
		wantErr   error
		wantUsed  int
	}{
		{
			name: "missing argument",
			text: "/shrink",
			mockSetup: func(_ *MockOrchestrator, ts *MockTextSender, _ *MockImageSender) {
				ts.On("NotifyAndReturnError", mock.Anything, mock.Anything).Once()
			},
			wantErr: errNoURL,
		},
		{
			name: "malformed url",
			text: "/shrink cat.png",
			mockSetup: func(_ *MockOrchestrator, ts *MockTextSender, _ *MockImageSender) {
				ts.On("NotifyAndReturnError", domain.ErrMalformedURL, mock.Anything).Once()
			},
			wantErr: domain.ErrMalformedURL,
		},
		{
			name: "image sent as document",
			text: "/shrink@pixbot https://example.com/cat.png",
			mockSetup: func(o *MockOrchestrator, _ *MockTextSender, is *MockImageSender) {
				o.On("Run", mock.Anything, mock.MatchedBy(func(req domain.RequestContext) bool {
					return req.TargetURL == "https://example.com/cat.png"
				})).Return(domain.OrchestrationResult{Winner: &winner}).Once()
				is.On("SendImageFileReply", mock.Anything, mock.Anything, []byte("avif"), "1.avif").
					Return(nil).Once()
			},
			wantUsed: 1,
		},
		{
			name: "upload fails",
			text: "/shrink https://example.com/cat.png",
			mockSetup: func(o *MockOrchestrator, ts *MockTextSender, is *MockImageSender) {
				o.On("Run", mock.Anything, mock.Anything).Return(domain.OrchestrationResult{Winner: &winner}).Once()
				is.On("SendImageFileReply", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(errors.New("too large")).Once()
				ts.On("NotifyAndReturnError", mock.Anything, mock.Anything).Once()
			},
			wantErr: errors.New("too large"),
		},
		{
			name: "exhausted replies with original",
			text: "/shrink https://example.com/cat.png",
			mockSetup: func(o *MockOrchestrator, ts *MockTextSender, _ *MockImageSender) {
				o.On("Run", mock.Anything, mock.Anything).Return(domain.OrchestrationResult{
					RedirectURL: "https://example.com/cat.png",
				}).Once()
				ts.On("SendMessageReply", mock.Anything, mock.Anything,
					"Could not shrink that image, here is the original: https://example.com/cat.png").
					Return(2, nil).Once()
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := &MockOrchestrator{}
			ts := &MockTextSender{}
			is := &MockImageSender{}
			tc.mockSetup(o, ts, is)
			usage := &stubUsage{}

			h := NewTelegram(o, ts, is, usage, "/shrink", "/stats", time.Second)
			err := h.Respond(t.Context(), &domain.ChatMessage{ID: 1, ChatID: 100, Text: tc.text})

			switch {
			case tc.wantErr == nil:
				require.NoError(t, err)
			case errors.Is(err, tc.wantErr):
			default:
				assert.EqualError(t, err, tc.wantErr.Error())
			}

			assert.Equal(t, tc.wantUsed, usage.usage.Images)
			o.AssertExpectations(t)
			ts.AssertExpectations(t)
			is.AssertExpectations(t)
		})
	}
}

func TestTelegram_Handle(t *testing.T) {
	winner := domain.NewCandidate([]byte("jpg"), "image/jpeg", domain.SourceLocalTranscode)

	o := &MockOrchestrator{}
	o.On("Run", mock.Anything, mock.Anything).Return(domain.OrchestrationResult{Winner: &winner})
	sent := make(chan struct{})
	is := &MockImageSender{}
	is.On("SendImageFileReply", mock.Anything, mock.MatchedBy(func(msg *domain.ChatMessage) bool {
		return msg.ID == 1 && msg.ChatID == 100 && msg.Username == "@bob"
	}), []byte("jpg"), "1.jpg").Run(func(mock.Arguments) { close(sent) }).Return(nil).Once()

	h := NewTelegram(o, &MockTextSender{}, is, &stubUsage{}, "/shrink", "/stats", time.Second)
	h.Handle(t.Context(), nil, makeUpdate("/shrink https://example.com/cat.jpg"))

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("image was not sent")
	}

	h.Handle(t.Context(), nil, &models.Update{})
	o.AssertNumberOfCalls(t, "Run", 1)
}

func TestTelegram_RespondStats(t *testing.T) {
	usage := &stubUsage{
		usage: domain.Usage{Images: 3, Bytes: 4096, Local: 1},
		reset: time.Now().Add(2*time.Hour + 30*time.Second),
	}

	ts := &MockTextSender{}
	ts.On("SendMessageReply", mock.Anything, mock.Anything,
		"Today in this chat: 3 images, 4096 bytes delivered, 1 transcoded locally. Resets in 2h0m0s.").
		Return(5, nil).Once()

	h := NewTelegram(&MockOrchestrator{}, ts, &MockImageSender{}, usage, "/shrink", "/stats", time.Second)
	require.NoError(t, h.RespondStats(t.Context(), &domain.ChatMessage{ID: 4, ChatID: 100, Text: "/stats"}))
	ts.AssertExpectations(t)

	failing := &MockTextSender{}
	failing.On("SendMessageReply", mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("flood")).Once()
	h = NewTelegram(&MockOrchestrator{}, failing, &MockImageSender{}, usage, "/shrink", "/stats", time.Second)
	assert.ErrorContains(t, h.RespondStats(t.Context(), &domain.ChatMessage{ChatID: 100}), "flood")
}

func TestGetUserNameOrFirstName(t *testing.T) {
	assert.Equal(t, "@bob", getUserNameOrFirstName(&models.User{Username: "bob", FirstName: "Bob"}))
	assert.Equal(t, "Bob", getUserNameOrFirstName(&models.User{FirstName: "Bob"}))
	assert.Empty(t, getUserNameOrFirstName(nil))
}
