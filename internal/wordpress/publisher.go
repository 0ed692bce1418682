package wordpress

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jonathan/article-engine/internal/types"
	"github.com/jonathan/article-engine/internal/workflow"
)

// Post statuses accepted by UpdatePostStatus.
const (
	PostStatusDraft   = "draft"
	PostStatusPublish = "publish"
)

// Publisher implements workflow.Publisher against the WordPress posts API.
type Publisher struct {
	client *Client
}

// NewPublisher creates a Publisher sharing the given client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

type postPayload struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Excerpt       string  `json:"excerpt,omitempty"`
	Status        string  `json:"status"`
	FeaturedMedia int64   `json:"featured_media,omitempty"`
	Categories    []int64 `json:"categories,omitempty"`
	Tags          []int64 `json:"tags,omitempty"`
}

type postResponse struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

type termResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreatePost creates the remote post, resolving category and tag names to
// term IDs (creating missing terms) first. When the draft carries no excerpt
// one is derived from the content.
func (p *Publisher) CreatePost(ctx context.Context, cfg *types.Configuration, draft *workflow.PostDraft) (*workflow.PostResult, error) {
	status := PostStatusDraft
	if draft.Publish {
		status = PostStatusPublish
	}

	excerpt := draft.Excerpt
	if excerpt == "" {
		excerpt = DeriveExcerpt(draft.Content, 160)
	}

	categoryIDs, err := p.resolveTerms(ctx, cfg, "categories", draft.Categories)
	if err != nil {
		return nil, err
	}
	tagIDs, err := p.resolveTerms(ctx, cfg, "tags", draft.Tags)
	if err != nil {
		return nil, err
	}

	payload := postPayload{
		Title:         draft.Title,
		Content:       draft.Content,
		Excerpt:       excerpt,
		Status:        status,
		FeaturedMedia: draft.FeaturedMediaID,
		Categories:    categoryIDs,
		Tags:          tagIDs,
	}

	var created postResponse
	if err := p.client.doJSON(ctx, cfg, "POST", "/posts", payload, &created); err != nil {
		return nil, err
	}
	return &workflow.PostResult{PostID: created.ID, PostURL: created.Link}, nil
}

// UpdatePostStatus changes the status of an existing post.
func (p *Publisher) UpdatePostStatus(ctx context.Context, cfg *types.Configuration, postID int64, status string) error {
	payload := map[string]string{"status": status}
	return p.client.doJSON(ctx, cfg, "POST", fmt.Sprintf("/posts/%d", postID), payload, nil)
}

// resolveTerms maps term names to IDs for one taxonomy, creating terms that
// do not exist yet. Name matching is exact.
func (p *Publisher) resolveTerms(ctx context.Context, cfg *types.Configuration, taxonomy string, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var matches []termResponse
		query := fmt.Sprintf("/%s?search=%s&per_page=100", taxonomy, url.QueryEscape(name))
		if err := p.client.doJSON(ctx, cfg, "GET", query, nil, &matches); err != nil {
			return nil, err
		}

		var id int64
		for _, match := range matches {
			if match.Name == name {
				id = match.ID
				break
			}
		}
		if id == 0 {
			var created termResponse
			if err := p.client.doJSON(ctx, cfg, "POST", "/"+taxonomy, map[string]string{"name": name}, &created); err != nil {
				return nil, err
			}
			id = created.ID
		}
		ids = append(ids, id)
	}
	return ids, nil
}
