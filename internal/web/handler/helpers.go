package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/db/dberr"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// DateLayout is the layout of date form fields.
const DateLayout = "2006-01-02"

// Page describes one page of a paginated list.
type Page struct {
	Page       int
	PageSize   int
	TotalItems int64
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

// NewPage clamps page into range and derives the navigation fields.
func NewPage(page, pageSize int, total int64) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages == 0 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}

	if page > totalPages {
		page = totalPages
	}

	return Page{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		PrevPage:   page - 1,
		NextPage:   page + 1,
	}
}

// QueryPage reads page and pageSize from the query string.
func QueryPage(c *fiber.Ctx) (page, pageSize int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	pageSize = c.QueryInt("pageSize", DefaultPageSize)
	if pageSize < 1 || pageSize > 100 {
		pageSize = DefaultPageSize
	}

	return page, pageSize
}

// ParamUUID returns the named route parameter if it is a UUID, else a 404 error.
func ParamUUID(c *fiber.Ctx, name string) (string, error) {
	raw := c.Params(name)
	if _, err := uuid.Parse(raw); err != nil {
		return "", fiber.NewError(fiber.StatusNotFound, dberr.MsgNotFound)
	}

	return raw, nil
}

// ParamID returns the named route parameter as a positive integer, else a 404 error.
func ParamID(c *fiber.Ctx, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, dberr.MsgNotFound)
	}

	return id, nil
}

// NotFound turns any of the given sentinel errors into a 404 *fiber.Error
// and returns other errors unchanged.
func NotFound(err error, sentinels ...error) error {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return fiber.NewError(fiber.StatusNotFound, dberr.MsgNotFound)
		}
	}

	return err
}

// CurrentUser returns the logged in user stored in locals, if any.
func CurrentUser(c *fiber.Ctx) (models.User, bool) {
	u, ok := c.Locals(auth.LocalsUser).(models.User)

	return u, ok && u.ID > 0
}

// UserID returns a pointer to the logged in user's id, or nil.
func UserID(c *fiber.Ctx) *uint64 {
	if u, ok := CurrentUser(c); ok {
		return &u.ID
	}

	if id := session.UserID(c); id > 0 {
		return &id
	}

	return nil
}

// Username returns the username of the logged in user, or "system".
func Username(c *fiber.Ctx) string {
	if u, ok := CurrentUser(c); ok {
		return u.Username
	}

	return "system"
}

// Flash stores a message for the next rendered page and redirects to location.
func Flash(c *fiber.Ctx, kind, message, location string) error {
	session.SetFlash(c, kind, message)

	return c.Redirect(location)
}

// ValidationMessages turns validator errors into readable sentences.
// Other errors become a single message.
func ValidationMessages(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}

	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, fieldMessage(fe))
	}

	return out
}

func fieldMessage(fe validator.FieldError) string {
	name := humanField(fe.Field())

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("%s must be at most %s", name, fe.Param())
		}

		return fmt.Sprintf("%s must be %s characters or fewer", name, fe.Param())
	case "min":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("%s must be at least %s", name, fe.Param())
		}

		return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
	case "email":
		return name + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", name, humanField(fe.Param()))
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", name, humanField(fe.Param()))
	case "eq":
		return name + " must be confirmed"
	default:
		return fmt.Sprintf("Field '%s' failed validation tag '%s'", fe.Field(), fe.Tag())
	}
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// humanField turns FieldName into "Field name".
func humanField(field string) string {
	var b strings.Builder

	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
			b.WriteRune(r + ('a' - 'A'))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// ParseDate parses an optional yyyy-mm-dd form value.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil //nolint:nilnil // empty means no date
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}

	return &t, nil
}
