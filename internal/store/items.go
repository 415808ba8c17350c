package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/erazemk/najdeno/internal/model"
)

// NewItem holds the fields of an item row at insert time.
type NewItem struct {
	Title        string
	Description  string
	CategoryID   *int64
	Location     string
	DateOccurred string
	ImageURL     string
	Type         string
	UserID       int64
	ContactInfo  model.ContactInfo
}

// ItemQuery selects non-deleted items. Empty fields do not filter.
type ItemQuery struct {
	Type   string
	Status string
	UserID int64
	Limit  int
}

// ItemStats counts items for the home page.
type ItemStats struct {
	Lost     int `json:"lost"`
	Found    int `json:"found"`
	Resolved int `json:"resolved"`
}

const itemSelect = `SELECT i.id, i.title, i.description, i.category_id, c.name, i.location,
        i.date_occurred, i.image_url, i.type, i.status, i.user_id, i.contact_info,
        i.created_at, i.updated_at, i.deleted_at,
        u.full_name, u.email, u.phone
 FROM items i
 LEFT JOIN categories c ON c.id = i.category_id
 JOIN users u ON u.id = i.user_id`

// CreateItem inserts a new active item.
func CreateItem(ctx context.Context, db *sql.DB, n NewItem) (*model.Item, error) {
	contact, err := json.Marshal(n.ContactInfo)
	if err != nil {
		return nil, fmt.Errorf("encoding contact info: %w", err)
	}

	var imageURL any
	if n.ImageURL != "" {
		imageURL = n.ImageURL
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (title, description, category_id, location, date_occurred, image_url, type, user_id, contact_info)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Title, n.Description, n.CategoryID, n.Location, n.DateOccurred, imageURL, n.Type, n.UserID, string(contact),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID with its category and poster profile joined.
// Soft-deleted items are still returned so callers can tell them apart from missing ones.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns non-deleted items matching q, newest first.
func ListItems(ctx context.Context, db *sql.DB, q ItemQuery) ([]model.Item, error) {
	where := []string{"i.deleted_at IS NULL"}
	var args []any
	if q.Type != "" {
		where = append(where, "i.type = ?")
		args = append(args, q.Type)
	}
	if q.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, q.Status)
	}
	if q.UserID != 0 {
		where = append(where, "i.user_id = ?")
		args = append(args, q.UserID)
	}

	query := itemSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY i.created_at DESC, i.id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListActiveItems returns active items, optionally of one type, newest first.
func ListActiveItems(ctx context.Context, db *sql.DB, itemType string) ([]model.Item, error) {
	return ListItems(ctx, db, ItemQuery{Type: itemType, Status: model.ItemStatusActive})
}

// UpdateItemStatus moves an item to a new status, enforcing allowed transitions.
func UpdateItemStatus(ctx context.Context, db *sql.DB, id int64, status string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM items WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("getting item status: %w", err)
	}

	if err := model.CheckTransition(current, status); err != nil {
		return fmt.Errorf("%s to %s: %w", current, status, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	); err != nil {
		return fmt.Errorf("updating item status: %w", err)
	}

	return tx.Commit()
}

// DeleteItem soft-deletes an item.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("deleting item: %w", sql.ErrNoRows)
	}
	return nil
}

// GetItemStats counts active lost and found items and all resolved items.
func GetItemStats(ctx context.Context, db *sql.DB) (*ItemStats, error) {
	s := &ItemStats{}
	err := db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(type = 'lost' AND status = 'active'), 0),
		    COALESCE(SUM(type = 'found' AND status = 'active'), 0),
		    COALESCE(SUM(status = 'resolved'), 0)
		 FROM items WHERE deleted_at IS NULL`,
	).Scan(&s.Lost, &s.Found, &s.Resolved)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	return s, nil
}

func scanItem(row rowScanner) (*model.Item, error) {
	var item model.Item
	var categoryID sql.NullInt64
	var categoryName, imageURL, phone sql.NullString
	var contact, fullName, email string

	err := row.Scan(&item.ID, &item.Title, &item.Description, &categoryID, &categoryName, &item.Location,
		&item.DateOccurred, &imageURL, &item.Type, &item.Status, &item.UserID, &contact,
		&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt,
		&fullName, &email, &phone)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		id := categoryID.Int64
		item.CategoryID = &id
	}
	item.Category = model.UncategorizedName
	if categoryName.Valid && categoryName.String != "" {
		item.Category = categoryName.String
	}
	item.ImageURL = imageURL.String

	if err := json.Unmarshal([]byte(contact), &item.ContactInfo); err != nil {
		return nil, fmt.Errorf("decoding contact info: %w", err)
	}

	poster := model.User{Email: email, FullName: fullName}
	if phone.Valid {
		p := phone.String
		poster.Phone = &p
	}
	item.Poster = poster.Profile()

	return &item, nil
}
