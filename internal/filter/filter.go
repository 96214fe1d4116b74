// Package filter provides the CEL based transaction query filter used
// by the listing API. Expressions are compiled per request against a
// fixed set of transaction variables and must evaluate to a boolean.
package filter

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Filter evaluates a compiled CEL expression against transactions.
type Filter struct {
	program cel.Program
}

// newEnv builds the CEL environment exposing transaction fields.
func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("account_id", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("description", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("ip_address", cel.StringType),
		cel.Variable("recipient_account_id", cel.StringType),
		cel.Variable("is_fraudulent", cel.BoolType),
		cel.Variable("flags", cel.ListType(cel.StringType)),
		cel.Variable("flag_count", cel.IntType),
	)
}

// Compile parses and checks a filter expression.
func Compile(expr string) (*Filter, error) {
	if expr == "" {
		return nil, fmt.Errorf("filter expression is empty")
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must evaluate to a boolean, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter program: %w", err)
	}

	return &Filter{program: program}, nil
}

// Match reports whether the transaction satisfies the filter.
// Evaluation errors count as non-matches.
func (f *Filter) Match(tx *domain.Transaction) bool {
	flags := make([]string, len(tx.FraudFlags))
	for i, fl := range tx.FraudFlags {
		flags[i] = string(fl)
	}

	out, _, err := f.program.Eval(map[string]any{
		"account_id":           tx.AccountID,
		"amount":               tx.Amount,
		"description":          tx.Description,
		"category":             tx.Category,
		"location":             tx.Location,
		"ip_address":           tx.IPAddress,
		"recipient_account_id": tx.RecipientAccountID,
		"is_fraudulent":        tx.IsFraudulent,
		"flags":                flags,
		"flag_count":           int64(len(tx.FraudFlags)),
	})
	if err != nil {
		return false
	}

	matched, ok := out.(types.Bool)
	return ok && bool(matched)
}

// Apply returns the transactions matching the filter, preserving order.
func (f *Filter) Apply(txs []*domain.Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}
