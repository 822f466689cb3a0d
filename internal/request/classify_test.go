package request

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

func classify(t *testing.T, body string) (Request, error) {
	t.Helper()
	return Classify(strings.NewReader(body))
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, errors.ValidationFailed, appErr.Code)
	assert.Contains(t, appErr.Fields, field)
}

func TestClassifyVariants(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     Request
		needAuth bool
	}{
		{
			name:     "deposit with numeric amount",
			body:     `{"requested_transaction_type":"deposit","transaction_direction":"inbound","destination_account_number":"1001","requested_amount":50}`,
			want:     &Deposit{DestinationAccountNumber: "1001", Amount: decimal.RequireFromString("50.00")},
			needAuth: true,
		},
		{
			name:     "withdrawal with string amount",
			body:     `{"requested_transaction_type":"withdrawal","transaction_direction":"outbound","source_account_number":"1001","requested_amount":"150.5"}`,
			want:     &Withdrawal{SourceAccountNumber: "1001", Amount: decimal.RequireFromString("150.50")},
			needAuth: true,
		},
		{
			name:     "billpay",
			body:     `{"requested_transaction_type":"billpay","bill_pay_rule_id":12}`,
			want:     &BillPay{RuleID: 12},
			needAuth: true,
		},
		{
			name:     "internal transfer",
			body:     `{"requested_transaction_type":"internal_transfer","transfer_rule_id":3}`,
			want:     &InternalTransfer{RuleID: 3},
			needAuth: true,
		},
		{
			name:     "external transfer outbound",
			body:     `{"requested_transaction_type":"external_transfer","transfer_rule_id":"4"}`,
			want:     &ExternalTransferOut{RuleID: 4},
			needAuth: true,
		},
		{
			name: "external transfer inbound",
			body: `{"requested_transaction_type":"external_transfer","transaction_direction":"inbound","destination_account_number":"1001","source_account_number":"998877","source_routing_number":"021000021","requested_amount":"20.00"}`,
			want: &ExternalTransferIn{
				DestinationAccountNumber: "1001",
				SourceAccountNumber:      "998877",
				SourceRoutingNumber:      "021000021",
				Amount:                   decimal.RequireFromString("20.00"),
			},
			needAuth: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := classify(t, tt.body)
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
			assert.Equal(t, tt.needAuth, got.RequiresAuth())
			assert.Equal(t, tt.want.Type(), got.Type())

			switch want := tt.want.(type) {
			case *Deposit:
				g := got.(*Deposit)
				assert.Equal(t, want.DestinationAccountNumber, g.DestinationAccountNumber)
				assert.True(t, want.Amount.Equal(g.Amount))
				assert.Equal(t, want.Amount.StringFixed(2), g.Amount.StringFixed(2))
			case *Withdrawal:
				g := got.(*Withdrawal)
				assert.True(t, want.Amount.Equal(g.Amount))
			case *ExternalTransferIn:
				g := got.(*ExternalTransferIn)
				assert.Equal(t, want.SourceRoutingNumber, g.SourceRoutingNumber)
				assert.True(t, want.Amount.Equal(g.Amount))
			default:
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClassifyMalformedBody(t *testing.T) {
	for _, body := range []string{
		``,
		`not json`,
		`{"requested_transaction_type":"deposit"`,
		`{"requested_transaction_type":"deposit","surprise":true}`,
		`{"requested_transaction_type":"billpay","bill_pay_rule_id":"abc"}`,
		`{"requested_transaction_type":"billpay","bill_pay_rule_id":1}{}`,
	} {
		_, err := classify(t, body)
		assert.True(t, errors.Is(err, errors.InvalidInput), "body %q: %v", body, err)
	}
}

func TestClassifyAmountRules(t *testing.T) {
	base := `{"requested_transaction_type":"withdrawal","transaction_direction":"outbound","source_account_number":"1001","requested_amount":%s}`

	for _, amount := range []string{`0`, `-5`, `"-5.00"`, `10.123`, `"1.001"`, `"abc"`, `true`, `""`, `10000000000000`} {
		_, err := classify(t, strings.Replace(base, "%s", amount, 1))
		requireValidation(t, err, "requested_amount")
	}

	for _, amount := range []string{`1`, `"0.01"`, `12.5`, `"9999999999999.99"`, `"10.500"`} {
		_, err := classify(t, strings.Replace(base, "%s", amount, 1))
		assert.NoError(t, err, amount)
	}
}

func TestParseAmountNormalizes(t *testing.T) {
	d, err := ParseAmount("150.5")
	require.NoError(t, err)
	assert.Equal(t, "150.50", d.StringFixed(2))
	assert.Equal(t, int32(-2), d.Exponent())
}

func TestClassifyValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing type", `{"bill_pay_rule_id":1}`, "requested_transaction_type"},
		{"unknown type", `{"requested_transaction_type":"refund"}`, "requested_transaction_type"},
		{"deposit missing destination", `{"requested_transaction_type":"deposit","transaction_direction":"inbound","requested_amount":5}`, "destination_account_number"},
		{"deposit wrong direction", `{"requested_transaction_type":"deposit","transaction_direction":"outbound","destination_account_number":"1","requested_amount":5}`, "transaction_direction"},
		{"deposit with rule", `{"requested_transaction_type":"deposit","transaction_direction":"inbound","destination_account_number":"1","requested_amount":5,"bill_pay_rule_id":2}`, "bill_pay_rule_id"},
		{"withdrawal missing direction", `{"requested_transaction_type":"withdrawal","source_account_number":"1","requested_amount":5}`, "transaction_direction"},
		{"billpay zero id", `{"requested_transaction_type":"billpay","bill_pay_rule_id":0}`, "bill_pay_rule_id"},
		{"billpay with transfer rule", `{"requested_transaction_type":"billpay","bill_pay_rule_id":1,"transfer_rule_id":2}`, "transfer_rule_id"},
		{"internal transfer with direction", `{"requested_transaction_type":"internal_transfer","transfer_rule_id":1,"transaction_direction":"outbound"}`, "transaction_direction"},
		{"internal transfer missing rule", `{"requested_transaction_type":"internal_transfer"}`, "transfer_rule_id"},
		{"external without rule or direction", `{"requested_transaction_type":"external_transfer","requested_amount":5}`, "transfer_rule_id"},
		{"external rule and inbound", `{"requested_transaction_type":"external_transfer","transfer_rule_id":1,"transaction_direction":"inbound"}`, "transfer_rule_id"},
		{"external outbound with amount", `{"requested_transaction_type":"external_transfer","transfer_rule_id":1,"requested_amount":5}`, "requested_amount"},
		{"external inbound bad routing", `{"requested_transaction_type":"external_transfer","transaction_direction":"inbound","destination_account_number":"1","source_account_number":"2","source_routing_number":"12","requested_amount":5}`, "source_routing_number"},
		{"external inbound missing source", `{"requested_transaction_type":"external_transfer","transaction_direction":"inbound","destination_account_number":"1","source_routing_number":"021000021","requested_amount":5}`, "source_account_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classify(t, tt.body)
			requireValidation(t, err, tt.field)
		})
	}
}

type typeRecorder struct{}

func (typeRecorder) VisitDeposit(context.Context, *Deposit) (string, error) { return "deposit", nil }
func (typeRecorder) VisitWithdrawal(context.Context, *Withdrawal) (string, error) {
	return "withdrawal", nil
}
func (typeRecorder) VisitBillPay(context.Context, *BillPay) (string, error) { return "billpay", nil }
func (typeRecorder) VisitInternalTransfer(context.Context, *InternalTransfer) (string, error) {
	return "internal", nil
}
func (typeRecorder) VisitExternalTransferOut(context.Context, *ExternalTransferOut) (string, error) {
	return "external-out", nil
}
func (typeRecorder) VisitExternalTransferIn(context.Context, *ExternalTransferIn) (string, error) {
	return "external-in", nil
}

func TestMatchDispatchesEveryVariant(t *testing.T) {
	cases := map[Request]string{
		&Deposit{}:             "deposit",
		&Withdrawal{}:          "withdrawal",
		&BillPay{}:             "billpay",
		&InternalTransfer{}:    "internal",
		&ExternalTransferOut{}: "external-out",
		&ExternalTransferIn{}:  "external-in",
	}

	for req, want := range cases {
		got, err := Match[string](context.Background(), req, typeRecorder{})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.Equal(t, domain.TypeExternalTransfer, (&ExternalTransferIn{}).Type())
}
