// Package publish sends finished articles to external destinations.
package publish

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-writer/internal/model"
	"github.com/sells-group/research-writer/pkg/notion"
)

// ErrNothingToPublish is returned for records that carry a diagnostic
// instead of a sourced article.
var ErrNothingToPublish = eris.New("publish: record has no publishable article")

// Notion database property names.
const (
	propName    = "Name"
	propRunID   = "Run ID"
	propSources = "Sources"
)

// Notion writes articles as pages of a Notion database. The database needs
// a title property "Name" and rich text properties "Run ID" and "Sources".
type Notion struct {
	client notion.Client
	dbID   string
}

// NewNotion creates a Notion publisher for the given database.
func NewNotion(client notion.Client, dbID string) *Notion {
	return &Notion{client: client, dbID: dbID}
}

// Publish creates a page for rec and returns its URL. Publishing the same
// run twice returns the existing page.
func (n *Notion) Publish(ctx context.Context, rec *model.Record) (string, error) {
	if rec == nil || rec.Error != "" || strings.TrimSpace(rec.Article) == "" {
		return "", ErrNothingToPublish
	}

	existing, err := n.client.QueryDatabase(ctx, n.dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: propRunID,
			RichText: &notionapi.TextFilterCondition{Equals: rec.RunID},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", eris.Wrap(err, "publish: find existing page")
	}
	if len(existing.Results) > 0 {
		page := existing.Results[0]
		zap.L().Info("article already published", zap.String("run_id", rec.RunID), zap.String("page_id", string(page.ID)))
		return page.URL, nil
	}

	page, err := n.client.CreatePage(ctx, articlePage(n.dbID, rec))
	if err != nil {
		return "", eris.Wrap(err, "publish: create page")
	}
	zap.L().Info("article published",
		zap.String("run_id", rec.RunID),
		zap.String("page_id", string(page.ID)),
		zap.Int("sources", len(rec.SelectedDocuments)),
	)
	return page.URL, nil
}

func articlePage(dbID string, rec *model.Record) *notionapi.PageCreateRequest {
	sources := rec.Sources()

	children := notion.MarkdownBlocks(rec.Article)
	if len(sources) > 0 {
		children = append(children, notion.MarkdownBlocks("## Sources")...)
		for _, s := range sources {
			children = append(children, notion.Bullet(s))
		}
	}
	if len(children) > notion.MaxChildren {
		children = children[:notion.MaxChildren]
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: notionapi.Properties{
			propName:    notion.TitleProperty(rec.Query),
			propRunID:   notion.RichTextProperty(rec.RunID),
			propSources: notion.RichTextProperty(strings.Join(sources, "\n")),
		},
		Children: children,
	}
}
