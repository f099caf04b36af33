package sharepoint

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/bdash/internal/model"
)

// Field names requested from the list.
const (
	fieldID             = "id"
	fieldTitle          = "Title"
	fieldBudgetCode     = "BudgetCode"
	fieldBudgetLineID   = "BudgetLineID"
	fieldYear           = "Year"
	fieldAmount         = "Amount"
	fieldRequestedBy    = "RequestedBy"
	fieldApprovalStatus = "ApprovalStatus"
)

var selectFields = []string{
	fieldID, fieldTitle, fieldBudgetCode, fieldBudgetLineID,
	fieldYear, fieldAmount, fieldRequestedBy, fieldApprovalStatus,
}

// listItemsResponse is the Graph /lists/{id}/items payload.
type listItemsResponse struct {
	Value    []listItem `json:"value"`
	NextLink string     `json:"@odata.nextLink"`
}

type listItem struct {
	ID              string                     `json:"id"`
	CreatedDateTime string                     `json:"createdDateTime"`
	Fields          map[string]json.RawMessage `json:"fields"`
}

// RawRecord is one list item as fetched, before mapping to the domain.
type RawRecord struct {
	ItemID  string
	Created time.Time
	Fields  map[string]json.RawMessage
}

// Result is the outcome of one Fetch.
type Result struct {
	Records   []RawRecord
	Truncated bool
	FetchedAt time.Time
}

func newRawRecord(it listItem) RawRecord {
	r := RawRecord{ItemID: it.ID, Fields: it.Fields}
	if t, err := time.Parse(time.RFC3339, it.CreatedDateTime); err == nil {
		r.Created = t
	}
	return r
}

// ID returns the list item id, preferring the id inside fields.
func (r RawRecord) ID() string {
	if id := r.String(fieldID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ItemID)
}

// String returns a field as text. Numbers are returned in their JSON form.
func (r RawRecord) String(name string) string {
	raw, ok := r.Fields[name]
	if !ok || len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Decimal parses a numeric field given as a number or a string such as
// "1,250.00". ok is false when the field is absent or unparseable.
func (r RawRecord) Decimal(name string) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(r.String(name), ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Int parses an integer field given as a number or a string.
func (r RawRecord) Int(name string) (int, bool) {
	d, ok := r.Decimal(name)
	if !ok {
		return 0, false
	}
	return int(d.IntPart()), true
}

// ToPaymentRequest maps the record to a PaymentRequest stamped with now.
// The status is normalized, so every record maps to a valid request; callers
// validate the amount.
func (r RawRecord) ToPaymentRequest(now time.Time) model.PaymentRequest {
	id := r.ID()
	pr := model.PaymentRequest{
		ID:           "PR-" + id,
		Name:         r.String(fieldTitle),
		BudgetCode:   r.String(fieldBudgetCode),
		BudgetLineID: r.String(fieldBudgetLineID),
		RequestedBy:  r.String(fieldRequestedBy),
		Status:       model.NormalizeStatus(r.String(fieldApprovalStatus)),
		SyncedAt:     &now,
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		pr.SharePointID = &n
	}
	if y, ok := r.Int(fieldYear); ok && y > 0 {
		pr.Year = y
	} else {
		pr.Year = now.Year()
	}
	pr.Amount, _ = r.Decimal(fieldAmount)

	created := r.Created
	if created.IsZero() {
		created = now
	}
	pr.RequestDate = time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
	return pr
}
