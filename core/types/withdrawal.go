package types

// Withdrawal is a validator-initiated balance credit processed after
// transactions and before end-of-block rewards, once the withdrawals
// amendment is active. Amount is denominated in Gwei.
type Withdrawal struct {
	Index     uint64
	Validator uint64
	Address   Address
	Amount    uint64
}
