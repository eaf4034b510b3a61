package graph

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/blockedby/mailmerge/internal/models"
)

// DefaultChunkSize bounds rows per rows/add call.
const DefaultChunkSize = 200

// DriveItem identifies a file in a drive.
type DriveItem struct {
	DriveID string
	ItemID  string
}

// Table is a workbook table.
type Table struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ShareID encodes a sharing URL as a Graph share id ("u!" + unpadded base64url).
func ShareID(webURL string) string {
	return "u!" + base64.RawURLEncoding.EncodeToString([]byte(webURL))
}

// Workbook appends rows to Excel tables reached through a sharing link.
// All calls go through Client.Do and so back off on throttling.
type Workbook struct {
	client *Client
}

// NewWorkbook creates a workbook accessor.
func NewWorkbook(client *Client) *Workbook {
	return &Workbook{client: client}
}

// ResolveDriveItem resolves a sharing link to its drive and item ids.
func (w *Workbook) ResolveDriveItem(ctx context.Context, link string) (DriveItem, error) {
	resp, err := w.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/shares/" + url.PathEscape(ShareID(link)) + "/driveItem",
	})
	if err != nil {
		return DriveItem{}, fmt.Errorf("resolve share: %w", err)
	}

	var item struct {
		ID              string `json:"id"`
		ParentReference *struct {
			DriveID string `json:"driveId"`
		} `json:"parentReference"`
	}
	if err := resp.Decode(&item); err != nil {
		return DriveItem{}, err
	}

	if item.ID == "" || item.ParentReference == nil || item.ParentReference.DriveID == "" {
		return DriveItem{}, ErrUnresolvedItem
	}
	return DriveItem{DriveID: item.ParentReference.DriveID, ItemID: item.ID}, nil
}

// ListTables returns the tables of a workbook.
func (w *Workbook) ListTables(ctx context.Context, item DriveItem) ([]Table, error) {
	resp, err := w.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   itemPath(item) + "/workbook/tables?$select=id,name",
	})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	var out struct {
		Value []Table `json:"value"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// AddRows appends rows to the named table in a single call.
func (w *Workbook) AddRows(ctx context.Context, item DriveItem, table string, rows [][]any) error {
	_, err := w.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   itemPath(item) + "/workbook/tables/" + url.PathEscape(table) + "/rows/add",
		Body:   map[string]any{"values": rows},
	})
	if err != nil {
		return fmt.Errorf("add rows to %s: %w", table, err)
	}
	return nil
}

// InsertParams describes a chunked insert through a sharing link.
type InsertParams struct {
	AnyoneEditLink string
	TableName      string
	Rows           [][]any
	ChunkSize      int
}

// InsertRows resolves the link, picks the table (by case-insensitive name,
// else the first one) and appends the rows in chunks.
func (w *Workbook) InsertRows(ctx context.Context, p InsertParams) error {
	if strings.TrimSpace(p.AnyoneEditLink) == "" {
		return ErrLinkRequired
	}
	if len(p.Rows) == 0 {
		return nil
	}

	item, err := w.ResolveDriveItem(ctx, p.AnyoneEditLink)
	if err != nil {
		return err
	}

	tables, err := w.ListTables(ctx, item)
	if err != nil {
		return err
	}
	table, err := pickTable(tables, p.TableName)
	if err != nil {
		return err
	}

	for _, part := range chunk(p.Rows, p.ChunkSize) {
		if err := w.AddRows(ctx, item, table.Name, part); err != nil {
			return err
		}
	}
	return nil
}

func pickTable(tables []Table, name string) (Table, error) {
	if len(tables) == 0 {
		return Table{}, ErrNoTables
	}
	if name != "" {
		for _, t := range tables {
			if strings.EqualFold(t.Name, name) {
				return t, nil
			}
		}
	}
	return tables[0], nil
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		out = append(out, items[i:end])
	}
	return out
}

func itemPath(item DriveItem) string {
	return "/drives/" + url.PathEscape(item.DriveID) + "/items/" + url.PathEscape(item.ItemID)
}

// WorkbookSink writes audit rows to a workbook table.
type WorkbookSink struct {
	workbook  *Workbook
	link      string
	tableName string
	chunkSize int
}

// NewWorkbookSink creates an audit sink for the table behind link.
func NewWorkbookSink(workbook *Workbook, link, tableName string, chunkSize int) *WorkbookSink {
	return &WorkbookSink{
		workbook:  workbook,
		link:      link,
		tableName: tableName,
		chunkSize: chunkSize,
	}
}

// Append persists rows in order.
func (s *WorkbookSink) Append(ctx context.Context, rows []models.AuditRow) error {
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}

	return s.workbook.InsertRows(ctx, InsertParams{
		AnyoneEditLink: s.link,
		TableName:      s.tableName,
		Rows:           values,
		ChunkSize:      s.chunkSize,
	})
}
