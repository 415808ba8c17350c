// Package posting turns a submitted item form into a stored item: validate,
// upload the optional image, insert the row.
package posting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/storage"
	"github.com/erazemk/najdeno/internal/store"
)

// Error kinds.
var (
	ErrValidation = errors.New("validation failed")
	ErrUpload     = errors.New("upload failed")
	ErrInsert     = errors.New("insert failed")
)

// Error carries a user-facing message along with its kind.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// GenericMessage is shown for failures without a more specific message.
const GenericMessage = "An error occurred"

// UserMessage returns the message to show for err.
func UserMessage(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return GenericMessage
}

// Submission is the item form as entered by the user.
type Submission struct {
	Title       string
	Description string
	CategoryID  int64 // 0 for none
	Location    string
	Date        string // YYYY-MM-DD
	Type        string
	Image       io.Reader // nil when no file is attached
}

// FormSubmission reads the text fields of the item form. Image is left nil.
func FormSubmission(form url.Values) Submission {
	categoryID, _ := strconv.ParseInt(form.Get("category_id"), 10, 64)
	return Submission{
		Title:       form.Get("title"),
		Description: form.Get("description"),
		CategoryID:  categoryID,
		Location:    form.Get("location"),
		Date:        form.Get("date"),
		Type:        form.Get("type"),
	}
}

// Service posts items.
type Service struct {
	DB      *sql.DB
	Storage storage.Store
	Now     func() time.Time
}

// New returns a Service using the wall clock.
func New(db *sql.DB, st storage.Store) *Service {
	return &Service{DB: db, Storage: st, Now: time.Now}
}

// Validate trims the text fields of sub in place and checks that every
// required field is present.
func Validate(sub *Submission) error {
	sub.Title = strings.TrimSpace(sub.Title)
	sub.Description = strings.TrimSpace(sub.Description)
	sub.Location = strings.TrimSpace(sub.Location)
	sub.Date = strings.TrimSpace(sub.Date)

	if sub.Title == "" || sub.Description == "" || sub.Location == "" || sub.Date == "" {
		return &Error{Kind: ErrValidation, Message: "Please fill in all required fields"}
	}
	if !model.ValidItemType(sub.Type) {
		return &Error{Kind: ErrValidation, Message: "Choose whether the item was lost or found"}
	}
	if _, err := time.Parse(model.DateLayout, sub.Date); err != nil {
		return &Error{Kind: ErrValidation, Message: "Please enter a valid date", Err: err}
	}
	return nil
}

// Submit validates sub, uploads its image if any and inserts the item for
// user. An attached file that is not a usable image is a validation error.
// Nothing is uploaded or inserted when validation fails, and nothing is
// inserted when the upload fails.
func (s *Service) Submit(ctx context.Context, user *model.User, sub Submission) (*model.Item, error) {
	if err := Validate(&sub); err != nil {
		return nil, err
	}

	var categoryID *int64
	if sub.CategoryID != 0 {
		c, err := store.GetCategory(ctx, s.DB, sub.CategoryID)
		if err != nil {
			return nil, &Error{Kind: ErrInsert, Message: GenericMessage, Err: err}
		}
		if c == nil {
			return nil, &Error{Kind: ErrValidation, Message: "Unknown category"}
		}
		categoryID = &c.ID
	}

	var imageURL, imageKey string
	if sub.Image != nil {
		var err error
		imageURL, imageKey, err = s.upload(ctx, user.ID, sub.Image)
		if err != nil {
			return nil, err
		}
	}

	item, err := store.CreateItem(ctx, s.DB, store.NewItem{
		Title:        sub.Title,
		Description:  sub.Description,
		CategoryID:   categoryID,
		Location:     sub.Location,
		DateOccurred: sub.Date,
		ImageURL:     imageURL,
		Type:         sub.Type,
		UserID:       user.ID,
		ContactInfo:  model.ContactInfo{Email: user.Email, Phone: user.Phone},
	})
	if err != nil {
		if imageKey != "" {
			if derr := s.Storage.Delete(context.WithoutCancel(ctx), imageKey); derr != nil {
				slog.Warn("failed to remove orphaned image", "key", imageKey, "error", derr)
			}
		}
		return nil, &Error{Kind: ErrInsert, Message: "Failed to post item", Err: err}
	}

	return item, nil
}

// Remove soft-deletes item and removes its image from storage. A failure to
// remove the image is logged and does not fail the call.
func (s *Service) Remove(ctx context.Context, item *model.Item) error {
	if err := store.DeleteItem(ctx, s.DB, item.ID); err != nil {
		return err
	}
	if item.ImageURL == "" {
		return nil
	}

	key, ok := storage.KeyFromURL(item.ImageURL, s.Storage.PublicURL())
	if !ok {
		slog.Warn("image not in storage, leaving it", "item", item.ID, "image", item.ImageURL)
		return nil
	}
	if err := s.Storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("failed to remove item image", "item", item.ID, "key", key, "error", err)
	}
	return nil
}

func (s *Service) upload(ctx context.Context, userID int64, r io.Reader) (publicURL, key string, err error) {
	img, err := imaging.Process(r)
	if err != nil {
		return "", "", &Error{Kind: ErrValidation, Message: "Image must be a JPEG, PNG or GIF up to 10 MB", Err: err}
	}

	key = storage.ObjectKey(userID, s.Now(), img.Ext)
	publicURL, err = s.Storage.Put(ctx, key, img.Data, img.MIME)
	if err != nil {
		return "", "", &Error{Kind: ErrUpload, Message: "Failed to upload image", Err: fmt.Errorf("storing %s: %w", key, err)}
	}
	return publicURL, key, nil
}
