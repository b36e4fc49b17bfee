package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	KindExpense  Kind = "expense"
	KindIncome   Kind = "income"
	KindTransfer Kind = "transfer"

	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"

	RoleUser  Role = "user"
	RoleAdmin Role = "admin"

	StatusLocked = 0
	StatusActive = 1

	dateLayout = "2006-01-02"

	maxNameLength        = 100
	maxDescriptionLength = 500
)

type (
	// Kind is the direction of a transaction.
	Kind string

	// Direction tells whether a category collects income or expenses.
	Direction string

	Role string

	// Date is a calendar date in UTC, independent of any creation timestamp.
	Date struct {
		time.Time
	}

	// Money holds a currency-agnostic amount in minor units (scale 2).
	Money struct {
		Cents int64
	}

	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"-"`
		Role         Role      `json:"role"`
		Status       int       `json:"status"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	Settings struct {
		UserID        string `json:"user_id"`
		Currency      string `json:"currency"`
		Language      string `json:"language"`
		Notifications bool   `json:"notifications"`
		AISuggestions bool   `json:"ai_suggestions"`
		Theme         string `json:"theme"`
	}

	Wallet struct {
		ID             string    `json:"id"`
		UserID         string    `json:"user_id"`
		Name           string    `json:"name"`
		Type           string    `json:"type"`
		OpeningBalance Money     `json:"opening_balance"`
		Balance        Money     `json:"balance"`
		Version        int64     `json:"version"`
		CreatedAt      time.Time `json:"created_at"`
	}

	Category struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Name      string    `json:"name"`
		Direction Direction `json:"direction"`
		ParentID  string    `json:"parent_id,omitempty"`
	}

	Transaction struct {
		ID           string    `json:"id"`
		UserID       string    `json:"user_id"`
		Kind         Kind      `json:"kind"`
		Amount       Money     `json:"amount"`
		WalletID     string    `json:"wallet_id,omitempty"`
		DestWalletID string    `json:"dest_wallet_id,omitempty"`
		CategoryID   string    `json:"category_id,omitempty"`
		AICategoryID string    `json:"ai_category_id,omitempty"`
		AIConfidence *float64  `json:"ai_confidence,omitempty"`
		Date         Date      `json:"date"`
		Description  string    `json:"description"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Budget struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		Name        string    `json:"name"`
		Limit       Money     `json:"limit_amount"`
		StartDate   Date      `json:"start_date"`
		EndDate     Date      `json:"end_date"`
		CategoryIDs []string  `json:"category_ids"`
		CreatedAt   time.Time `json:"created_at"`
	}

	ChatLog struct {
		ID        int64     `json:"id"`
		UserID    string    `json:"user_id"`
		Question  string    `json:"question"`
		Answer    string    `json:"answer"`
		CreatedAt time.Time `json:"created_at"`
	}

	PasswordResetToken struct {
		Email     string
		Token     string
		ExpiresAt time.Time
	}
)

// Inputs, one per mutating operation.
type (
	TransactionInput struct {
		Kind         Kind
		Amount       Money
		WalletID     string
		DestWalletID string
		CategoryID   string
		Date         Date
		Description  string
		AICategoryID string
		AIConfidence *float64
	}

	BudgetInput struct {
		Name        string
		Limit       Money
		StartDate   Date
		EndDate     Date
		CategoryIDs []string
	}

	WalletInput struct {
		Name           string
		Type           string
		OpeningBalance Money
	}

	CategoryInput struct {
		Name      string
		Direction Direction
		ParentID  string
	}

	RegisterInput struct {
		Email    string
		Name     string
		Password string
	}

	SettingsInput struct {
		Currency      string
		Language      string
		Notifications bool
		AISuggestions bool
		Theme         string
	}
)

func (k Kind) IsValid() bool {
	switch k {
	case KindExpense, KindIncome, KindTransfer:
		return true
	default:
		return false
	}
}

// Label is the human-readable kind used in export rows.
func (k Kind) Label() string {
	switch k {
	case KindExpense:
		return "Expense"
	case KindIncome:
		return "Income"
	case KindTransfer:
		return "Transfer"
	default:
		return string(k)
	}
}

func (d Direction) IsValid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("unparsable date %q", s)}
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to other. It works on
// day numbers, so it holds for any pair of dates time.Time can represent.
func (d Date) DaysUntil(other Date) int {
	return int(other.dayNumber() - d.dayNumber())
}

// dayNumber counts days since 1970-01-01 for the calendar date of d.
func (d Date) dayNumber() int64 {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &ValidationError{Field: "date", Reason: "date must be a YYYY-MM-DD string"}
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks that m is a strictly positive amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// CheckedAdd is Add that fails instead of wrapping around.
func (m Money) CheckedAdd(o Money) (Money, error) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, ErrAmountOutOfRange
	}
	return Money{Cents: sum}, nil
}

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

func (in TransactionInput) Validate() error {
	if !in.Kind.IsValid() {
		return ErrInvalidKind
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if len(in.Description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if in.AIConfidence != nil && (*in.AIConfidence < 0 || *in.AIConfidence > 1) {
		return &ValidationError{Field: "ai_confidence", Reason: "must be between 0 and 1"}
	}
	_, _, err := in.Wallets()
	return err
}

// Wallets resolves the input into the stored source and destination slots.
// Income is credited to the source slot; the receiving wallet arrives as the
// destination input and falls back to WalletID.
func (in TransactionInput) Wallets() (source, dest string, err error) {
	switch in.Kind {
	case KindIncome:
		source = strings.TrimSpace(in.DestWalletID)
		if source == "" {
			source = strings.TrimSpace(in.WalletID)
		}
	case KindExpense:
		source = strings.TrimSpace(in.WalletID)
	case KindTransfer:
		source = strings.TrimSpace(in.WalletID)
		dest = strings.TrimSpace(in.DestWalletID)
		if dest == "" {
			return "", "", ErrMissingDestination
		}
		if dest == source {
			return "", "", ErrSameWallet
		}
	default:
		return "", "", ErrInvalidKind
	}
	if source == "" {
		return "", "", ErrMissingWallet
	}
	return source, dest, nil
}

func (in BudgetInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if len(in.Name) > maxNameLength {
		return ErrNameTooLong
	}
	if err := in.Limit.Validate(); err != nil {
		return err
	}
	if err := in.StartDate.Validate(); err != nil {
		return err
	}
	if err := in.EndDate.Validate(); err != nil {
		return err
	}
	if in.EndDate.Before(in.StartDate.Time) {
		return ErrInvalidWindow
	}
	return nil
}

func (in WalletInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if len(in.Name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if len(in.Name) > maxNameLength {
		return ErrNameTooLong
	}
	if !in.Direction.IsValid() {
		return ErrInvalidDirection
	}
	return nil
}

func (in RegisterInput) Validate() error {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return &ValidationError{Field: "email", Reason: "a valid email address is required"}
	}
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	return ValidatePassword(in.Password)
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return &ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	return nil
}

func (in SettingsInput) Validate() error {
	if strings.TrimSpace(in.Currency) == "" {
		return &ValidationError{Field: "currency", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(in.Language) == "" {
		return &ValidationError{Field: "language", Reason: "cannot be empty"}
	}
	switch in.Theme {
	case "light", "dark":
	default:
		return &ValidationError{Field: "theme", Reason: "must be light or dark"}
	}
	return nil
}

// DefaultSettings returns the settings row created on registration.
func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:        userID,
		Currency:      "VND",
		Language:      "vi",
		Notifications: true,
		AISuggestions: true,
		Theme:         "light",
	}
}
