package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethrun/ethrun/core/vm"
)

// Errors returned by the rule-set oracle and engine construction.
var (
	ErrUnsupportedRuleSet           = errors.New("core: resolved rule-set is outside the engine's declared support list")
	ErrUnsupportedAmendment         = errors.New("core: unsupported amendment requested")
	ErrConflictingHardforkSelectors = errors.New("core: both hardforkByBlockNumber and hardforkByTD were requested")
	ErrLegacyOptionRejected         = errors.New("core: legacy option key is no longer recognized")
)

// RuleSetTag names one version of the protocol rule set. Tags are ordered
// by declaration order in ChainConfig.Forks, oldest first; "active" means
// "this tag or an earlier one has been activated".
type RuleSetTag string

// ForkActivation declares when one rule-set tag becomes active: by block
// number, by total difficulty, or both. When both are configured for
// different tags and a query satisfies both, the block-number activation
// wins (see ChainConfig.Resolve).
type ForkActivation struct {
	Tag         RuleSetTag
	BlockNumber *uint64
	TD          *big.Int
}

// ChainConfig is the chain-parameters contract consumed by the rule-set
// oracle: the chain id and an ordered list of fork activations.
type ChainConfig struct {
	ChainID *big.Int
	Forks   []ForkActivation

	// Supported restricts which tags Resolve will accept; if empty, every
	// declared tag is accepted.
	Supported map[RuleSetTag]bool
}

// Resolve is the rule-set oracle: given a
// block number and optional total difficulty, it returns the highest
// activated tag and the amendment set (vm.ForkRules) implied by every tag
// at or below it in declared order.
func (c *ChainConfig) Resolve(blockNumber uint64, td *big.Int) (RuleSetTag, vm.ForkRules, error) {
	var resolvedIdx = -1
	for i, f := range c.Forks {
		active := false
		switch {
		case f.TD != nil && f.BlockNumber != nil:
			// TD-based activation requires the block number to also have
			// reached the tag's own block activation.
			active = td != nil && td.Cmp(f.TD) >= 0 && blockNumber >= *f.BlockNumber
		case f.TD != nil:
			active = td != nil && td.Cmp(f.TD) >= 0
		case f.BlockNumber != nil:
			active = blockNumber >= *f.BlockNumber
		default:
			// A tag with neither selector configured is always active
			// (the genesis rule-set).
			active = true
		}
		if active {
			resolvedIdx = i
		}
	}
	if resolvedIdx == -1 {
		return "", vm.ForkRules{}, fmt.Errorf("%w: no fork active at block %d", ErrUnsupportedRuleSet, blockNumber)
	}

	// Block-number-wins tie-break: if a later-declared tag whose own
	// block-number activation is independently satisfied, it is promoted
	// over a TD-activated tag even if declared later.
	for i := resolvedIdx + 1; i < len(c.Forks); i++ {
		f := c.Forks[i]
		if f.TD == nil && f.BlockNumber != nil && blockNumber >= *f.BlockNumber {
			resolvedIdx = i
		}
	}

	tag := c.Forks[resolvedIdx].Tag
	if len(c.Supported) > 0 && !c.Supported[tag] {
		return "", vm.ForkRules{}, fmt.Errorf("%w: %s", ErrUnsupportedRuleSet, tag)
	}

	rules := vm.ForkRules{Tag: string(tag)}
	for i := 0; i <= resolvedIdx; i++ {
		applyAmendments(&rules, c.Forks[i].Tag)
	}
	return tag, rules, nil
}

// applyAmendments turns on every flag first introduced at or before tag,
// using the well-known Ethereum mainnet fork ordering as the amendment
// schedule. Tags outside this schedule contribute no extra flags, letting
// callers declare custom tags for narrower test configurations.
func applyAmendments(r *vm.ForkRules, tag RuleSetTag) {
	switch tag {
	case TagFrontier:
	case TagHomestead:
		r.IsHomestead = true
	case TagByzantium:
		setUpTo(r, TagHomestead)
		r.IsByzantium = true
	case TagConstantinople:
		setUpTo(r, TagByzantium)
		r.IsConstantinople = true
	case TagIstanbul:
		setUpTo(r, TagConstantinople)
		r.IsIstanbul = true
	case TagBerlin:
		setUpTo(r, TagIstanbul)
		r.IsBerlin = true
	case TagLondon:
		setUpTo(r, TagBerlin)
		r.IsLondon = true
		r.IsEIP158 = true
	case TagMerge:
		setUpTo(r, TagLondon)
		r.IsMerge = true
	case TagShanghai:
		setUpTo(r, TagMerge)
		r.IsShanghai = true
	case TagCancun:
		setUpTo(r, TagShanghai)
		r.IsCancun = true
		r.IsEIP3540 = true
		r.IsEIP3541 = true
	case TagPrague:
		setUpTo(r, TagCancun)
		r.IsPrague = true
		r.IsEIP7708 = true
	case TagGlamsterdan:
		setUpTo(r, TagPrague)
		r.IsGlamsterdan = true
	case TagVerkle:
		setUpTo(r, TagGlamsterdan)
		r.IsVerkle = true
	}
}

// setUpTo applies every amendment implied by tag without re-deriving the
// cumulative chain above; it recurses through applyAmendments on the same
// struct since amendment flags are monotone (set, never cleared).
func setUpTo(r *vm.ForkRules, tag RuleSetTag) { applyAmendments(r, tag) }

// Well-known tags in canonical activation order. Custom chain
// configurations may declare additional tags; only these names participate
// in the amendment schedule above.
const (
	TagFrontier       RuleSetTag = "frontier"
	TagHomestead      RuleSetTag = "homestead"
	TagByzantium      RuleSetTag = "byzantium"
	TagConstantinople RuleSetTag = "constantinople"
	TagIstanbul       RuleSetTag = "istanbul"
	TagBerlin         RuleSetTag = "berlin"
	TagLondon         RuleSetTag = "london"
	TagMerge          RuleSetTag = "merge"
	TagShanghai       RuleSetTag = "shanghai"
	TagCancun         RuleSetTag = "cancun"
	TagPrague         RuleSetTag = "prague"
	TagGlamsterdan    RuleSetTag = "glamsterdan"
	TagVerkle         RuleSetTag = "verkle"
)

func u64(v uint64) *uint64 { return &v }

// MainnetConfig is a block-number-activated configuration spanning every
// declared tag, usable as a default for tests and the CLI.
var MainnetConfig = &ChainConfig{
	ChainID: big.NewInt(1),
	Forks: []ForkActivation{
		{Tag: TagFrontier},
		{Tag: TagHomestead, BlockNumber: u64(1_150_000)},
		{Tag: TagByzantium, BlockNumber: u64(4_370_000)},
		{Tag: TagConstantinople, BlockNumber: u64(7_280_000)},
		{Tag: TagIstanbul, BlockNumber: u64(9_069_000)},
		{Tag: TagBerlin, BlockNumber: u64(12_244_000)},
		{Tag: TagLondon, BlockNumber: u64(12_965_000)},
		{Tag: TagMerge, BlockNumber: u64(15_537_394)},
		{Tag: TagShanghai, BlockNumber: u64(17_034_870)},
		{Tag: TagCancun, BlockNumber: u64(19_426_587)},
		{Tag: TagPrague, BlockNumber: u64(22_431_084)},
	},
}

// TestConfig activates every tag at block zero, for unit tests that want
// the latest rule set without a realistic activation schedule.
var TestConfig = &ChainConfig{
	ChainID: big.NewInt(1337),
	Forks: []ForkActivation{
		{Tag: TagPrague, BlockNumber: u64(0)},
	},
}
