// Package sample provides the built-in dataset and YAML seeding.
package sample

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/theirongolddev/bdash/internal/ledger"
	"github.com/theirongolddev/bdash/internal/model"
)

//go:embed seed.yaml
var seedYAML []byte

// Dataset is a set of budget lines and payment requests to load into a ledger.
type Dataset struct {
	BudgetLines     []model.BudgetLine     `yaml:"budget_lines"`
	PaymentRequests []model.PaymentRequest `yaml:"payment_requests"`
}

// Default returns the built-in dataset.
func Default() (Dataset, error) {
	return Parse(seedYAML)
}

// LoadFile reads a dataset from a YAML file.
func LoadFile(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("reading dataset: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML dataset. Statuses are normalized the
// same way synced records are.
func Parse(data []byte) (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("parsing dataset: %w", err)
	}

	lineIDs := make(map[string]bool, len(ds.BudgetLines))
	for _, l := range ds.BudgetLines {
		if l.ID == "" {
			return Dataset{}, fmt.Errorf("budget line %q: missing id", l.BudgetCode)
		}
		if lineIDs[l.ID] {
			return Dataset{}, fmt.Errorf("budget line %s: duplicate id", l.ID)
		}
		lineIDs[l.ID] = true
	}

	reqIDs := make(map[string]bool, len(ds.PaymentRequests))
	for i := range ds.PaymentRequests {
		pr := &ds.PaymentRequests[i]
		if pr.ID == "" {
			return Dataset{}, fmt.Errorf("payment request %d: missing id", i)
		}
		if reqIDs[pr.ID] {
			return Dataset{}, fmt.Errorf("payment request %s: duplicate id", pr.ID)
		}
		reqIDs[pr.ID] = true
		if !pr.Amount.IsPositive() {
			return Dataset{}, fmt.Errorf("payment request %s: amount must be positive", pr.ID)
		}
		pr.Status = model.NormalizeStatus(string(pr.Status))
	}
	return ds, nil
}

// Seed writes ds through svc. Lines go first so requests reconcile against
// them.
func Seed(ctx context.Context, svc *ledger.Service, ds Dataset) error {
	for _, l := range ds.BudgetLines {
		if err := svc.UpsertBudgetLine(ctx, l); err != nil {
			return err
		}
	}
	for _, pr := range ds.PaymentRequests {
		if _, err := svc.UpsertPaymentRequest(ctx, pr); err != nil {
			return err
		}
	}
	return nil
}
