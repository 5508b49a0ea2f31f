package memory

import (
	"testing"

	"github.com/dwsmith1983/deploygate/internal/ledger"
	"github.com/dwsmith1983/deploygate/internal/ledger/ledgertest"
)

func TestConformance(t *testing.T) {
	ledgertest.RunAll(t, func(_ *testing.T) ledger.Ledger {
		return New()
	})
}
