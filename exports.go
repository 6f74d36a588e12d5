package treasury

import "github.com/xraph/treasury/types"

// Re-export common types for convenience so users don't have to import types package.

// Fiat is re-exported from types package.
type Fiat = types.Fiat

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Fiat constructors
var (
	USD      = types.USD
	EUR      = types.EUR
	GBP      = types.GBP
	USDCents = types.USDCents
	Zero     = types.Zero
	Sum      = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
