package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const (
	maxBodyBytes = 1 << 20

	defaultListLimit = 100
	maxListLimit     = 1000
)

var (
	errMalformedBody = errors.New("malformed request body")
	errEmptyBody     = errors.New("request body is empty")
	errTrailingData  = errors.New("request body must contain a single JSON object")
)

// decodeJSON reads one JSON object into v. Unknown fields are rejected so
// typos surface instead of silently zeroing a value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return bodyError(errEmptyBody)
		}
		return bodyError(err)
	}
	if dec.More() {
		return bodyError(errTrailingData)
	}
	return nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func queryDate(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: key, Reason: "must be a YYYY-MM-DD date"}
	}
	return d, nil
}

func queryKind(query url.Values) (core.Kind, error) {
	k := core.Kind(strings.ToLower(strings.TrimSpace(query.Get("kind"))))
	if k != "" && !k.IsValid() {
		return "", core.ErrInvalidKind
	}
	return k, nil
}

// ParseReportQuery resolves ?range=&from=&to=&wallet_id=&kind= relative to
// now. Explicit from and to override the range preset.
func ParseReportQuery(query url.Values, userID string, now time.Time) (services.ReportQuery, error) {
	from, to := core.RangeFor(strings.TrimSpace(query.Get("range")), core.DateOf(now))

	explicitFrom, err := queryDate(query, "from")
	if err != nil {
		return services.ReportQuery{}, err
	}
	explicitTo, err := queryDate(query, "to")
	if err != nil {
		return services.ReportQuery{}, err
	}
	if !explicitFrom.IsZero() {
		from = explicitFrom
	}
	if !explicitTo.IsZero() {
		to = explicitTo
	}
	if to.Before(from.Time) {
		return services.ReportQuery{}, &core.ValidationError{Field: "to", Reason: "must not be before from"}
	}

	kind, err := queryKind(query)
	if err != nil {
		return services.ReportQuery{}, err
	}
	return services.ReportQuery{
		UserID:   userID,
		From:     from,
		To:       to,
		WalletID: strings.TrimSpace(query.Get("wallet_id")),
		Kind:     kind,
	}, nil
}

// ParseTransactionFilter reads the list filters of GET /api/transactions.
func ParseTransactionFilter(query url.Values) (storage.TransactionFilter, error) {
	var (
		f   storage.TransactionFilter
		err error
	)
	if f.From, err = queryDate(query, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(query, "to"); err != nil {
		return f, err
	}
	if f.Kind, err = queryKind(query); err != nil {
		return f, err
	}
	f.WalletID = strings.TrimSpace(query.Get("wallet_id"))
	f.CategoryID = strings.TrimSpace(query.Get("category_id"))

	f.Limit = defaultListLimit
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, &core.ValidationError{Field: "limit", Reason: "must be a positive integer"}
		}
		f.Limit = min(n, maxListLimit)
	}
	return f, nil
}

// Request bodies. They mirror the core inputs with wire names.
type (
	transactionRequest struct {
		Kind         core.Kind  `json:"kind"`
		Amount       core.Money `json:"amount"`
		WalletID     string     `json:"wallet_id"`
		DestWalletID string     `json:"dest_wallet_id"`
		CategoryID   string     `json:"category_id"`
		Date         core.Date  `json:"date"`
		Description  string     `json:"description"`
		AICategoryID string     `json:"ai_category_id"`
		AIConfidence *float64   `json:"ai_confidence"`
	}

	walletRequest struct {
		Name           string     `json:"name"`
		Type           string     `json:"type"`
		OpeningBalance core.Money `json:"opening_balance"`
	}

	categoryRequest struct {
		Name      string         `json:"name"`
		Direction core.Direction `json:"direction"`
		ParentID  string         `json:"parent_id"`
	}

	budgetRequest struct {
		Name        string     `json:"name"`
		Limit       core.Money `json:"limit_amount"`
		StartDate   core.Date  `json:"start_date"`
		EndDate     core.Date  `json:"end_date"`
		CategoryIDs []string   `json:"category_ids"`
	}

	registerRequest struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	settingsRequest struct {
		Currency      string `json:"currency"`
		Language      string `json:"language"`
		Notifications bool   `json:"notifications"`
		AISuggestions bool   `json:"ai_suggestions"`
		Theme         string `json:"theme"`
	}

	resetRequest struct {
		Email string `json:"email"`
	}

	resetConfirmRequest struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}

	statusRequest struct {
		Status *int `json:"status"`
	}

	textRequest struct {
		Text string `json:"text"`
	}

	chatRequest struct {
		Question string `json:"question"`
	}
)

func (r transactionRequest) input() core.TransactionInput {
	return core.TransactionInput{
		Kind:         core.Kind(strings.ToLower(strings.TrimSpace(string(r.Kind)))),
		Amount:       r.Amount,
		WalletID:     r.WalletID,
		DestWalletID: r.DestWalletID,
		CategoryID:   strings.TrimSpace(r.CategoryID),
		Date:         r.Date,
		Description:  sanitizeInput(r.Description),
		AICategoryID: strings.TrimSpace(r.AICategoryID),
		AIConfidence: r.AIConfidence,
	}
}

func (r walletRequest) input() core.WalletInput {
	return core.WalletInput{
		Name:           sanitizeInput(r.Name),
		Type:           sanitizeInput(r.Type),
		OpeningBalance: r.OpeningBalance,
	}
}

func (r categoryRequest) input() core.CategoryInput {
	return core.CategoryInput{
		Name:      sanitizeInput(r.Name),
		Direction: r.Direction,
		ParentID:  strings.TrimSpace(r.ParentID),
	}
}

func (r budgetRequest) input() core.BudgetInput {
	return core.BudgetInput{
		Name:        sanitizeInput(r.Name),
		Limit:       r.Limit,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		CategoryIDs: r.CategoryIDs,
	}
}

func (r registerRequest) input() core.RegisterInput {
	return core.RegisterInput{
		Email:    strings.TrimSpace(r.Email),
		Name:     sanitizeInput(r.Name),
		Password: r.Password,
	}
}

func (r settingsRequest) input() core.SettingsInput {
	return core.SettingsInput{
		Currency:      sanitizeInput(r.Currency),
		Language:      sanitizeInput(r.Language),
		Notifications: r.Notifications,
		AISuggestions: r.AISuggestions,
		Theme:         strings.TrimSpace(r.Theme),
	}
}

// bodyError turns a decode failure into a client error. Field-level
// validation raised while decoding (bad amount, bad date) keeps its 422.
func bodyError(err error) error {
	if core.IsValidation(err) {
		return err
	}
	return fmt.Errorf("%w: %v", errMalformedBody, err)
}
