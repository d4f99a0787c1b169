package models

// WagerSettledEvent is published after a wager commits.
type WagerSettledEvent struct {
	EventID    string `json:"event_id"`    // Unique identifier of the event
	Timestamp  int64  `json:"timestamp"`   // Unix seconds when the wager committed
	AccountID  string `json:"account_id"`  // Account the wager was resolved against
	WagerID    int64  `json:"wager_id"`    // Identifier of the persisted wager row
	Stake      string `json:"stake"`       // Decimal string
	ChosenSide Side   `json:"chosen_side"` // Side picked by the player
	Outcome    Side   `json:"outcome"`     // Side the coin landed on
	Win        bool   `json:"win"`
	Payout     string `json:"payout"`      // Decimal string, zero on loss
	NewBalance string `json:"new_balance"` // Decimal string
}
