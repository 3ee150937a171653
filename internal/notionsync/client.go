package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// queryPageSize is the largest page size the Notion API accepts.
const queryPageSize = 100

// BillDatabase implements BillPages for one Notion database.
type BillDatabase struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
}

// NewBillDatabase returns a BillDatabase for databaseID, authenticated with token.
func NewBillDatabase(token, databaseID string) *BillDatabase {
	return &BillDatabase{
		client:     notionapi.NewClient(notionapi.Token(token)),
		databaseID: notionapi.DatabaseID(databaseID),
	}
}

func (d *BillDatabase) QueryPages(ctx context.Context, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
	if cursor != "" {
		req.StartCursor = cursor
	}

	resp, err := d.client.Database.Query(ctx, d.databaseID, req)
	if err != nil {
		return nil, fmt.Errorf("QueryPages: %s: %w", d.databaseID, err)
	}
	return resp, nil
}

func (d *BillDatabase) CreatePage(ctx context.Context, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := d.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: d.databaseID,
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

func (d *BillDatabase) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := d.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: %s: %w", pageID, err)
	}
	return page, nil
}

func (d *BillDatabase) ArchivePage(ctx context.Context, pageID string) error {
	_, err := d.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived: true,
	})
	if err != nil {
		return fmt.Errorf("ArchivePage: %s: %w", pageID, err)
	}
	return nil
}

var _ BillPages = (*BillDatabase)(nil)
