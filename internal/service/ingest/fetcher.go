package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	gmailapi "google.golang.org/api/gmail/v1"

	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
	"github.com/huavcjj/followup/internal/metrics"
	"github.com/huavcjj/followup/internal/retry"
)

// ProviderPageCap is the largest page the search API returns.
const ProviderPageCap = 500

type Fetcher struct {
	client gmail_domain.MailClient
	policy retry.Policy
}

func NewFetcher(client gmail_domain.MailClient, policy retry.Policy) *Fetcher {
	return &Fetcher{client: client, policy: policy}
}

// Fetch pages through search results until maxResults refs are collected or
// the provider runs out. A failing page ends paging and the refs gathered so
// far are returned.
func (f *Fetcher) Fetch(ctx context.Context, query string, labelIDs []string, maxResults int) []gmail_domain.MessageRef {
	refs := []gmail_domain.MessageRef{}
	if maxResults <= 0 {
		return refs
	}

	pageToken := ""
	for len(refs) < maxResults {
		want := min(ProviderPageCap, maxResults-len(refs))
		token := pageToken
		page, err := retry.Do(ctx, f.policy, "messages.list", func(ctx context.Context) (*gmail_domain.SearchPage, error) {
			return f.client.Search(ctx, query, labelIDs, int64(want), token)
		})
		if err != nil {
			slog.Warn("message search failed, keeping partial results",
				"query", query,
				"collected", len(refs),
				"error", err,
			)
			break
		}

		refs = append(refs, page.Refs...)
		if page.NextPageToken == "" || len(page.Refs) < want {
			break
		}
		pageToken = page.NextPageToken
	}

	if len(refs) > maxResults {
		refs = refs[:maxResults]
	}
	metrics.MessagesFetched.Add(float64(len(refs)))
	return refs
}

// Message fetches and normalizes one message.
func (f *Fetcher) Message(ctx context.Context, id string) (*gmail_domain.Message, error) {
	raw, err := retry.Do(ctx, f.policy, "messages.get", func(ctx context.Context) (*gmailapi.Message, error) {
		return f.client.GetMessage(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	msg := ParseMessage(raw)
	if msg == nil {
		return nil, fmt.Errorf("message %s has no payload", id)
	}
	return msg, nil
}

// Labels returns the mailbox labels sorted by name. Failures yield an empty list.
func (f *Fetcher) Labels(ctx context.Context) []gmail_domain.Label {
	labels, err := retry.Do(ctx, f.policy, "labels.list", func(ctx context.Context) ([]gmail_domain.Label, error) {
		return f.client.ListLabels(ctx)
	})
	if err != nil {
		slog.Warn("failed to list labels", "error", err)
		return []gmail_domain.Label{}
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return labels
}
