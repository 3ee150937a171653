package notionsync

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the bills database.
const (
	PropBillKey     = "Bill"
	PropCard        = "Card"
	PropPeriod      = "Period"
	PropClosingDate = "Closing Date"
	PropDueDate     = "Due Date"
	PropTotal       = "Total"
	PropPaid        = "Paid"
	PropIsPaid      = "Is Paid"
	PropStatus      = "Status"
	PropVersion     = "Version"
)

// BillToNotionProperties converts a bill to Notion properties. The title is
// the bill key ("card/YYYY-MM"), which identifies the page on later syncs.
func BillToNotionProperties(bill *domain.Bill, cardName string) notionapi.Properties {
	if cardName == "" {
		cardName = bill.CardID
	}

	return notionapi.Properties{
		PropBillKey: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: bill.BillKey.String(),
					},
				},
			},
		},
		PropCard: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: cardName,
			},
		},
		PropPeriod: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: notionDate(bill.PeriodStart),
				End:   notionDate(bill.PeriodEnd),
			},
		},
		PropClosingDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: notionDate(bill.ClosingDate),
			},
		},
		PropDueDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: notionDate(bill.DueDate),
			},
		},
		PropTotal: notionapi.NumberProperty{
			Number: bill.TotalAmount.InexactFloat64(),
		},
		PropPaid: notionapi.NumberProperty{
			Number: bill.PaidAmount.InexactFloat64(),
		},
		PropIsPaid: notionapi.CheckboxProperty{
			Checkbox: bill.IsPaid,
		},
		PropStatus: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(bill.Status),
			},
		},
		PropVersion: notionapi.NumberProperty{
			Number: float64(bill.Version),
		},
	}
}

func notionDate(d civil.Date) *notionapi.Date {
	nd := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return &nd
}

// extractBillKey returns the bill key title of a page, or "".
func extractBillKey(page notionapi.Page) string {
	if prop, ok := page.Properties[PropBillKey]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}

// extractVersion returns the bill version stored on a page, or -1.
func extractVersion(page notionapi.Page) int64 {
	if prop, ok := page.Properties[PropVersion]; ok {
		if num, ok := prop.(*notionapi.NumberProperty); ok {
			return int64(num.Number)
		}
	}
	return -1
}
