package types

// Body is the non-header portion of a block: its transactions, uncle
// headers (pre-merge rule-sets only) and withdrawals (post-withdrawals
// rule-sets only).
type Body struct {
	Transactions []*Transaction
	Uncles       []*Header
	Withdrawals  []*Withdrawal
}

// Block pairs a header with its body. Headers are hashed and cached
// independently of the block.
type Block struct {
	header *Header
	body   *Body
}

func NewBlock(header *Header, body *Body) *Block {
	if body == nil {
		body = &Body{}
	}
	return &Block{header: header, body: body}
}

func (b *Block) Header() *Header           { return b.header }
func (b *Block) Body() *Body               { return b.body }
func (b *Block) Transactions() []*Transaction { return b.body.Transactions }
func (b *Block) Uncles() []*Header         { return b.body.Uncles }
func (b *Block) Withdrawals() []*Withdrawal { return b.body.Withdrawals }

func (b *Block) Hash() Hash      { return b.header.Hash() }
func (b *Block) Number() uint64  { return b.header.Number.Uint64() }
func (b *Block) ParentHash() Hash { return b.header.ParentHash }
func (b *Block) GasLimit() uint64 { return b.header.GasLimit }
func (b *Block) GasUsed() uint64  { return b.header.GasUsed }
func (b *Block) Time() uint64     { return b.header.Time }

// WithSeal returns a new Block with the same body but the given header,
// used by the block builder to attach the finalized, root-bearing header.
func (b *Block) WithSeal(header *Header) *Block {
	return &Block{header: header, body: b.body}
}
