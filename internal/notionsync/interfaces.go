package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// BillPages is the Notion database bills are mirrored into.
type BillPages interface {
	// QueryPages returns one page of database rows starting at cursor.
	QueryPages(ctx context.Context, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error)

	CreatePage(ctx context.Context, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// ArchivePage archives a page so it no longer shows in the database.
	ArchivePage(ctx context.Context, pageID string) error
}
