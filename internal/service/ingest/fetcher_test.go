package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
)

func TestFetchPagesUpToMax(t *testing.T) {
	mail := newFakeMail()
	mail.pages[""] = &gmail_domain.SearchPage{Refs: refs("a", 500), NextPageToken: "p2"}
	mail.pages["p2"] = &gmail_domain.SearchPage{Refs: refs("b", 500), NextPageToken: "p3"}
	mail.pages["p3"] = &gmail_domain.SearchPage{Refs: refs("c", 500), NextPageToken: "p4"}

	got := NewFetcher(mail, testPolicy).Fetch(context.Background(), "in:sent", nil, 1200)

	assert.Len(t, got, 1200)
	assert.Equal(t, []int64{500, 500, 200}, mail.searchSizes)
	assert.Equal(t, "a0", got[0].ID)
	assert.Equal(t, "c199", got[1199].ID)
}

func TestFetchStopsOnShortPage(t *testing.T) {
	mail := newFakeMail()
	mail.pages[""] = &gmail_domain.SearchPage{Refs: refs("a", 3), NextPageToken: "p2"}
	mail.pages["p2"] = &gmail_domain.SearchPage{Refs: refs("b", 3)}

	got := NewFetcher(mail, testPolicy).Fetch(context.Background(), "q", nil, 10)

	assert.Len(t, got, 3)
	assert.Equal(t, []int64{10}, mail.searchSizes)
}

func TestFetchKeepsPartialResults(t *testing.T) {
	mail := newFakeMail()
	mail.pages[""] = &gmail_domain.SearchPage{Refs: refs("a", 500), NextPageToken: "p2"}
	mail.searchErrs["p2"] = errors.New("quota exhausted")

	got := NewFetcher(mail, testPolicy).Fetch(context.Background(), "q", nil, 600)

	assert.Len(t, got, 500)
}

func TestFetchFirstPageFailure(t *testing.T) {
	mail := newFakeMail()
	mail.searchErrs[""] = errors.New("unauthorized")

	got := NewFetcher(mail, testPolicy).Fetch(context.Background(), "q", nil, 50)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetchZeroMax(t *testing.T) {
	mail := newFakeMail()

	got := NewFetcher(mail, testPolicy).Fetch(context.Background(), "q", nil, 0)

	assert.Empty(t, got)
	assert.Empty(t, mail.searchSizes)
}

func TestLabelsSortedByName(t *testing.T) {
	mail := newFakeMail()
	mail.labels = []gmail_domain.Label{
		{ID: "SENT", Name: "SENT"},
		{ID: "Label_1", Name: "Jobs"},
		{ID: "INBOX", Name: "INBOX"},
	}

	got := NewFetcher(mail, testPolicy).Labels(context.Background())

	assert.Equal(t, []string{"INBOX", "Jobs", "SENT"}, []string{got[0].Name, got[1].Name, got[2].Name})
}

func TestMessageNotFound(t *testing.T) {
	_, err := NewFetcher(newFakeMail(), testPolicy).Message(context.Background(), "missing")
	assert.ErrorContains(t, err, "missing")
}
