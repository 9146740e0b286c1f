package mappings

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Module and keys used by sale postings.
const (
	ModuleSales = "SALES"

	KeySalesCash      = "sales.cash"
	KeySalesRevenue   = "sales.revenue"
	KeySalesVAT       = "sales.vat"
	KeySalesCOGS      = "sales.cogs"
	KeySalesInventory = "sales.inventory"
)

// DefaultSalesCodes maps each sales key to its account code in the minimal chart.
var DefaultSalesCodes = map[string]string{
	KeySalesCash:      "1011",
	KeySalesRevenue:   "7011",
	KeySalesVAT:       "4011",
	KeySalesCOGS:      "6911",
	KeySalesInventory: "2011",
}

// AccountMapping links an integration key to a ledger account of one organization.
type AccountMapping struct {
	OrganizationID int64     `json:"organizationId"`
	Module         string    `json:"module"`
	Key            string    `json:"key"`
	AccountID      int64     `json:"accountId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Normalize upper-cases the module and trims the key.
func Normalize(module, key string) (string, string, error) {
	module = strings.ToUpper(strings.TrimSpace(module))
	key = strings.TrimSpace(key)
	if module == "" || key == "" {
		return "", "", shared.ErrInvalidMapping
	}
	return module, key, nil
}
