package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
)

func TestCountReplies(t *testing.T) {
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	thread := []gmail_domain.ThreadMessage{
		{ID: "r2", InternalDate: at(3)},
		{ID: "orig", InternalDate: at(0)},
		{ID: "r1", InternalDate: at(1)},
		{ID: "before", InternalDate: at(-1)},
	}

	tests := []struct {
		name     string
		messages []gmail_domain.ThreadMessage
		original string
		reply    bool
		count    int
	}{
		{name: "replies after original", messages: thread, original: "orig", reply: true, count: 2},
		{name: "last message", messages: thread, original: "r2", reply: false, count: 0},
		{name: "original missing", messages: thread, original: "gone", reply: false, count: 0},
		{name: "single message", messages: thread[1:2], original: "orig", reply: false, count: 0},
		{name: "empty thread", messages: nil, original: "orig", reply: false, count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, count := CountReplies(tt.messages, tt.original)
			assert.Equal(t, tt.reply, reply)
			assert.Equal(t, tt.count, count)
		})
	}

	assert.Equal(t, "r2", thread[0].ID, "input order is preserved")
}

func TestDetectProviderFailure(t *testing.T) {
	mail := newFakeMail()
	mail.threadErr = errors.New("boom")

	reply, count := NewReplyDetector(mail, testPolicy).Detect(context.Background(), "t1", "m1")
	assert.False(t, reply)
	assert.Zero(t, count)
}

func TestDetect(t *testing.T) {
	mail := newFakeMail()
	sent := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	mail.addMessage("m1", "t1", "Hi", "a@b.io", sent, "hello")
	mail.threads["t1"] = append(mail.threads["t1"], gmail_domain.ThreadMessage{ID: "x", InternalDate: sent.Add(time.Hour)})

	reply, count := NewReplyDetector(mail, testPolicy).Detect(context.Background(), "t1", "m1")
	assert.True(t, reply)
	assert.Equal(t, 1, count)

	reply, _ = NewReplyDetector(mail, testPolicy).Detect(context.Background(), "", "m1")
	assert.False(t, reply)
}
