package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// envelope is the wire shape shared by all variants.
type envelope struct {
	RequestedTransactionType string          `json:"requested_transaction_type" validate:"required,oneof=deposit withdrawal billpay internal_transfer external_transfer"`
	TransactionDirection     string          `json:"transaction_direction" validate:"omitempty,oneof=inbound outbound"`
	DestinationAccountNumber string          `json:"destination_account_number"`
	SourceAccountNumber      string          `json:"source_account_number"`
	SourceRoutingNumber      string          `json:"source_routing_number"`
	RequestedAmount          json.RawMessage `json:"requested_amount"`
	BillPayRuleID            json.Number     `json:"bill_pay_rule_id"`
	TransferRuleID           json.Number     `json:"transfer_rule_id"`
}

type depositBody struct {
	TransactionDirection     string `json:"transaction_direction" validate:"required,eq=inbound"`
	DestinationAccountNumber string `json:"destination_account_number" validate:"required,alphanum,max=32"`
	RequestedAmount          string `json:"requested_amount" validate:"required,money"`
}

type withdrawalBody struct {
	TransactionDirection string `json:"transaction_direction" validate:"required,eq=outbound"`
	SourceAccountNumber  string `json:"source_account_number" validate:"required,alphanum,max=32"`
	RequestedAmount      string `json:"requested_amount" validate:"required,money"`
}

type billPayBody struct {
	TransactionDirection string `json:"transaction_direction" validate:"omitempty,eq=outbound"`
	BillPayRuleID        string `json:"bill_pay_rule_id" validate:"required,record_id"`
}

type internalTransferBody struct {
	TransferRuleID string `json:"transfer_rule_id" validate:"required,record_id"`
}

type externalOutBody struct {
	TransactionDirection string `json:"transaction_direction" validate:"omitempty,eq=outbound"`
	TransferRuleID       string `json:"transfer_rule_id" validate:"required,record_id"`
}

type externalInBody struct {
	TransactionDirection     string `json:"transaction_direction" validate:"required,eq=inbound"`
	DestinationAccountNumber string `json:"destination_account_number" validate:"required,alphanum,max=32"`
	SourceAccountNumber      string `json:"source_account_number" validate:"required,alphanum,max=32"`
	SourceRoutingNumber      string `json:"source_routing_number" validate:"required,numeric,len=9"`
	RequestedAmount          string `json:"requested_amount" validate:"required,money"`
}

// Classify decodes and validates a request body. Malformed JSON yields an
// invalid_input error; a well-formed body that fails the schema of its
// variant yields validation_failed with per-field messages.
func Classify(body io.Reader) (Request, error) {
	var env envelope
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, errors.ErrInvalidBody.WithDetails(err.Error())
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.ErrInvalidBody.WithDetails("unexpected data after JSON object")
	}

	if err := validateStruct(&env); err != nil {
		return nil, err
	}

	amount := amountText(env.RequestedAmount)

	switch domain.TransactionType(env.RequestedTransactionType) {
	case domain.TypeDeposit:
		b := depositBody{
			TransactionDirection:     env.TransactionDirection,
			DestinationAccountNumber: env.DestinationAccountNumber,
			RequestedAmount:          amount,
		}
		if err := check(&env, &b, "transaction_direction", "destination_account_number", "requested_amount"); err != nil {
			return nil, err
		}
		return &Deposit{DestinationAccountNumber: b.DestinationAccountNumber, Amount: mustAmount(amount)}, nil

	case domain.TypeWithdrawal:
		b := withdrawalBody{
			TransactionDirection: env.TransactionDirection,
			SourceAccountNumber:  env.SourceAccountNumber,
			RequestedAmount:      amount,
		}
		if err := check(&env, &b, "transaction_direction", "source_account_number", "requested_amount"); err != nil {
			return nil, err
		}
		return &Withdrawal{SourceAccountNumber: b.SourceAccountNumber, Amount: mustAmount(amount)}, nil

	case domain.TypeBillPay:
		b := billPayBody{
			TransactionDirection: env.TransactionDirection,
			BillPayRuleID:        env.BillPayRuleID.String(),
		}
		if err := check(&env, &b, "transaction_direction", "bill_pay_rule_id"); err != nil {
			return nil, err
		}
		return &BillPay{RuleID: mustID(b.BillPayRuleID)}, nil

	case domain.TypeInternalTransfer:
		b := internalTransferBody{TransferRuleID: env.TransferRuleID.String()}
		if err := check(&env, &b, "transfer_rule_id"); err != nil {
			return nil, err
		}
		return &InternalTransfer{RuleID: mustID(b.TransferRuleID)}, nil

	case domain.TypeExternalTransfer:
		return classifyExternal(&env, amount)
	}

	// validateStruct already restricts the type to the cases above.
	return nil, errors.NewAppError(errors.ValidationFailed, "unsupported transaction type").
		WithFields(map[string]string{"requested_transaction_type": "is not supported"})
}

// classifyExternal separates rule-driven outbound transfers from third-party
// inbound ones.
func classifyExternal(env *envelope, amount string) (Request, error) {
	hasRule := env.TransferRuleID != ""
	inbound := env.TransactionDirection == string(domain.DirectionInbound)

	switch {
	case hasRule && inbound:
		return nil, validationError(map[string]string{
			"transfer_rule_id": "is not allowed with transaction_direction inbound",
		})

	case hasRule:
		b := externalOutBody{
			TransactionDirection: env.TransactionDirection,
			TransferRuleID:       env.TransferRuleID.String(),
		}
		if err := check(env, &b, "transaction_direction", "transfer_rule_id"); err != nil {
			return nil, err
		}
		return &ExternalTransferOut{RuleID: mustID(b.TransferRuleID)}, nil

	case inbound:
		b := externalInBody{
			TransactionDirection:     env.TransactionDirection,
			DestinationAccountNumber: env.DestinationAccountNumber,
			SourceAccountNumber:      env.SourceAccountNumber,
			SourceRoutingNumber:      env.SourceRoutingNumber,
			RequestedAmount:          amount,
		}
		if err := check(env, &b, "transaction_direction", "destination_account_number",
			"source_account_number", "source_routing_number", "requested_amount"); err != nil {
			return nil, err
		}
		return &ExternalTransferIn{
			DestinationAccountNumber: b.DestinationAccountNumber,
			SourceAccountNumber:      b.SourceAccountNumber,
			SourceRoutingNumber:      b.SourceRoutingNumber,
			Amount:                   mustAmount(amount),
		}, nil
	}

	return nil, validationError(map[string]string{
		"transfer_rule_id": "is required unless transaction_direction is inbound",
	})
}

// ParseAmount normalizes a positive amount to two decimal places. Values that
// need more precision are rejected rather than rounded.
func ParseAmount(text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a decimal number")
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("must be greater than 0")
	}
	if !d.Equal(d.Truncate(2)) {
		return decimal.Zero, fmt.Errorf("must have at most 2 decimal places")
	}
	if d.GreaterThanOrEqual(domain.BalanceLimit) {
		return decimal.Zero, fmt.Errorf("exceeds the maximum amount")
	}
	return d.Round(2), nil
}

// amountText accepts a JSON number or a JSON string.
func amountText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw)
		}
		if strings.TrimSpace(s) == "" {
			// Present but blank must not read as missing.
			return " "
		}
		return s
	}
	return string(raw)
}

func mustAmount(text string) decimal.Decimal {
	d, _ := ParseAmount(text)
	return d
}

func mustID(text string) int64 {
	id, _ := strconv.ParseInt(text, 10, 64)
	return id
}

// check validates the variant body and rejects fields that belong to other
// variants.
func check(env *envelope, body any, allowed ...string) error {
	fields := map[string]string{}

	permitted := map[string]bool{"requested_transaction_type": true}
	for _, name := range allowed {
		permitted[name] = true
	}
	for _, name := range env.present() {
		if !permitted[name] {
			fields[name] = fmt.Sprintf("is not allowed for %s", env.RequestedTransactionType)
		}
	}

	if err := validateStruct(body); err != nil {
		appErr, _ := errors.AsAppError(err)
		for k, v := range appErr.Fields {
			fields[k] = v
		}
	}

	if len(fields) > 0 {
		return validationError(fields)
	}
	return nil
}

func (e *envelope) present() []string {
	var names []string
	if e.TransactionDirection != "" {
		names = append(names, "transaction_direction")
	}
	if e.DestinationAccountNumber != "" {
		names = append(names, "destination_account_number")
	}
	if e.SourceAccountNumber != "" {
		names = append(names, "source_account_number")
	}
	if e.SourceRoutingNumber != "" {
		names = append(names, "source_routing_number")
	}
	if amountText(e.RequestedAmount) != "" {
		names = append(names, "requested_amount")
	}
	if e.BillPayRuleID != "" {
		names = append(names, "bill_pay_rule_id")
	}
	if e.TransferRuleID != "" {
		names = append(names, "transfer_rule_id")
	}
	return names
}

func validationError(fields map[string]string) *errors.AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return errors.NewAppErrorf(errors.ValidationFailed, "invalid fields: %s", strings.Join(names, ", ")).
		WithFields(fields)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// Registration only fails for empty tags or nil funcs.
		_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
			_, err := ParseAmount(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("record_id", func(fl validator.FieldLevel) bool {
			id, err := strconv.ParseInt(fl.Field().String(), 10, 64)
			return err == nil && id > 0
		})
		validate = v
	})
	return validate
}

func validateStruct(payload any) error {
	err := getValidator().Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return errors.NewAppError(errors.ValidationFailed, "validation failed").WithDetails(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return validationError(fields)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

var fieldMessages = map[string]func(param string) string{
	"required":  func(string) string { return "is required" },
	"eq":        func(p string) string { return "must be " + p },
	"oneof":     func(p string) string { return fmt.Sprintf("must be one of [%s]", p) },
	"alphanum":  func(string) string { return "must be alphanumeric" },
	"numeric":   func(string) string { return "must contain only digits" },
	"max":       func(p string) string { return "must be at most " + p + " characters" },
	"len":       func(p string) string { return "must be exactly " + p + " characters" },
	"money":     func(string) string { return "must be a positive amount with at most 2 decimal places" },
	"record_id": func(string) string { return "must be a positive integer id" },
}

func fieldMessage(fe validator.FieldError) string {
	if format, ok := fieldMessages[fe.Tag()]; ok {
		return format(fe.Param())
	}
	return "is invalid"
}
