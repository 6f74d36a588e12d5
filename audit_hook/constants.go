package audithook

// Action constants for audit events.
const (
	// Wallet actions
	ActionWalletCreated = "wallet.created"
	ActionCredited      = "wallet.credited"

	// Reservation actions
	ActionHoldCreated        = "hold.created"
	ActionCaptured           = "hold.captured"
	ActionCaptureShortfall   = "hold.capture_shortfall"
	ActionReleased           = "hold.released"
	ActionReservationExpired = "hold.expired"

	// Settlement actions
	ActionDirectBilled = "bill.direct"

	// Exchange actions
	ActionExchanged = "exchange.completed"

	// Sweep actions
	ActionSweepCompleted = "sweep.completed"
)

// Resource constants for audit events.
const (
	ResourceWallet      = "wallet"
	ResourceReservation = "reservation"
	ResourceTransaction = "transaction"
	ResourceExchange    = "exchange_order"
	ResourceSweep       = "sweep"
)

// Category constants for audit events.
const (
	CategoryWallet      = "wallet"
	CategoryBilling     = "billing"
	CategoryExchange    = "exchange"
	CategoryMaintenance = "maintenance"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
