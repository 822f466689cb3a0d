package service

import (
	"context"
	"log/slog"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
	"transaction-engine/internal/gateway"
	"transaction-engine/internal/request"
)

// resolver loads what a request addresses and enforces ownership and active
// state. Ownership and existence failures are returned alone and collapse to
// not found. Inactive entities come back as a denial together with the plan,
// so the caller can record what was attempted.
type resolver struct {
	repos     domain.Repositories
	principal *domain.Principal
	logger    *slog.Logger
}

var _ request.Visitor[*plan] = (*resolver)(nil)

func (r *resolver) VisitDeposit(ctx context.Context, req *request.Deposit) (*plan, error) {
	account, err := r.ownedAccountByNumber(ctx, req.DestinationAccountNumber)
	if err != nil {
		return nil, err
	}

	p := &plan{
		txType:    domain.TypeDeposit,
		direction: domain.DirectionInbound,
		account:   account,
		amount:    req.Amount,
		message:   "Deposit successful",
	}
	return p, activeOr(account, p.inactiveError())
}

func (r *resolver) VisitWithdrawal(ctx context.Context, req *request.Withdrawal) (*plan, error) {
	account, err := r.ownedAccountByNumber(ctx, req.SourceAccountNumber)
	if err != nil {
		return nil, err
	}

	p := &plan{
		txType:    domain.TypeWithdrawal,
		direction: domain.DirectionOutbound,
		account:   account,
		amount:    req.Amount,
		message:   "Withdrawal successful",
	}
	return p, activeOr(account, p.inactiveError())
}

func (r *resolver) VisitBillPay(ctx context.Context, req *request.BillPay) (*plan, error) {
	rule, err := r.repos.Rule().GetBillPayRule(ctx, req.RuleID)
	if err != nil {
		return nil, err
	}
	if rule.UserID != r.principal.UserID {
		r.logger.Warn("Bill pay rule not owned by caller", "rule_id", rule.ID, "user_id", r.principal.UserID)
		return nil, errors.ErrRuleNotFound
	}

	source, err := r.ownedAccountByID(ctx, rule.SourceAccountID)
	if err != nil {
		return nil, err
	}

	p := &plan{
		txType:    domain.TypeBillPay,
		direction: domain.DirectionOutbound,
		account:   source,
		amount:    rule.Amount,
		ruleID:    &rule.ID,
		message:   "Bill payment successful",
	}
	if err := activeOr(source, p.inactiveError()); err != nil {
		return p, err
	}

	// A missing payee is denied like an inactive one.
	if rule.Payee == nil || !rule.Payee.Active {
		r.logger.Warn("Bill pay rule points at unusable payee", "rule_id", rule.ID, "payee_id", rule.PayeeID)
		return p, errors.ErrPayeeInactive
	}

	p.counterpartyNumber = &rule.Payee.AccountNumber
	p.counterpartyRouting = &rule.Payee.RoutingNumber
	p.payment = &gateway.Payment{
		Type:          domain.TypeBillPay,
		AccountID:     source.ID,
		Amount:        rule.Amount,
		Beneficiary:   rule.Payee.Name,
		AccountNumber: rule.Payee.AccountNumber,
		RoutingNumber: rule.Payee.RoutingNumber,
	}
	return p, nil
}

func (r *resolver) VisitInternalTransfer(ctx context.Context, req *request.InternalTransfer) (*plan, error) {
	rule, err := r.ownedTransferRule(ctx, req.RuleID, false)
	if err != nil {
		return nil, err
	}

	source, err := r.ownedAccountByID(ctx, rule.SourceAccountID)
	if err != nil {
		return nil, err
	}
	if *rule.DestinationAccountID == source.ID {
		return nil, errors.ErrSameAccountTransfer
	}

	// The destination may belong to anyone; it only has to exist.
	destination, err := r.repos.Account().GetAccount(ctx, *rule.DestinationAccountID)
	if err != nil {
		return nil, err
	}

	p := &plan{
		txType:    domain.TypeInternalTransfer,
		direction: domain.DirectionOutbound,
		account:   source,
		counter:   destination,
		amount:    rule.Amount,
		ruleID:    &rule.ID,
		message:   "Internal transfer successful",
	}
	if err := activeOr(source, errors.ErrSourceInactive); err != nil {
		return p, err
	}
	return p, activeOr(destination, errors.ErrDestinationInactive)
}

func (r *resolver) VisitExternalTransferOut(ctx context.Context, req *request.ExternalTransferOut) (*plan, error) {
	rule, err := r.ownedTransferRule(ctx, req.RuleID, true)
	if err != nil {
		return nil, err
	}

	source, err := r.ownedAccountByID(ctx, rule.SourceAccountID)
	if err != nil {
		return nil, err
	}

	p := &plan{
		txType:              domain.TypeExternalTransfer,
		direction:           domain.DirectionOutbound,
		account:             source,
		amount:              rule.Amount,
		ruleID:              &rule.ID,
		counterpartyNumber:  rule.ExternalAccountNumber,
		counterpartyRouting: rule.ExternalRoutingNumber,
		message:             "External transfer successful",
		payment: &gateway.Payment{
			Type:          domain.TypeExternalTransfer,
			AccountID:     source.ID,
			Amount:        rule.Amount,
			AccountNumber: *rule.ExternalAccountNumber,
			RoutingNumber: *rule.ExternalRoutingNumber,
		},
	}
	return p, activeOr(source, p.inactiveError())
}

// VisitExternalTransferIn has no principal; the sender is another bank.
func (r *resolver) VisitExternalTransferIn(ctx context.Context, req *request.ExternalTransferIn) (*plan, error) {
	account, err := r.repos.Account().GetAccountByNumber(ctx, req.DestinationAccountNumber)
	if err != nil {
		return nil, err
	}

	sourceNumber := req.SourceAccountNumber
	sourceRouting := req.SourceRoutingNumber
	p := &plan{
		txType:              domain.TypeExternalTransfer,
		direction:           domain.DirectionInbound,
		account:             account,
		amount:              req.Amount,
		counterpartyNumber:  &sourceNumber,
		counterpartyRouting: &sourceRouting,
		message:             "External transfer received",
	}
	return p, activeOr(account, p.inactiveError())
}

func (r *resolver) ownedAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	account, err := r.repos.Account().GetAccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(r.principal) {
		r.logger.Warn("Account not owned by caller", "account_id", account.ID, "user_id", r.principal.UserID)
		return nil, errors.ErrAccountNotFound
	}
	return account, nil
}

func (r *resolver) ownedAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := r.repos.Account().GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(r.principal) {
		r.logger.Warn("Rule source account not owned by caller", "account_id", account.ID, "user_id", r.principal.UserID)
		return nil, errors.ErrAccountNotFound
	}
	return account, nil
}

// ownedTransferRule loads a transfer rule of the expected kind. A rule of the
// other kind is reported as not found.
func (r *resolver) ownedTransferRule(ctx context.Context, id int64, external bool) (*domain.TransferRule, error) {
	rule, err := r.repos.Rule().GetTransferRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.UserID != r.principal.UserID {
		r.logger.Warn("Transfer rule not owned by caller", "rule_id", rule.ID, "user_id", r.principal.UserID)
		return nil, errors.ErrRuleNotFound
	}
	if rule.IsExternal() != external {
		r.logger.Warn("Transfer rule kind mismatch", "rule_id", rule.ID, "external", rule.IsExternal())
		return nil, errors.ErrRuleNotFound
	}
	if external && (rule.ExternalAccountNumber == nil || rule.ExternalRoutingNumber == nil) {
		return nil, errors.Internal("external transfer rule has no destination", nil)
	}
	return rule, nil
}

func activeOr(account *domain.Account, denial *errors.AppError) error {
	if account.Active {
		return nil
	}
	return denial
}
