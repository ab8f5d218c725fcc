package consensus

import (
	"fmt"
	"time"
)

// Config holds the consensus graph's recognized options (spec.md §6). Field
// tags name the snake_case keys node/config_loader.go decodes from YAML via
// mapstructure, so a config file can set any option here by the same name
// the original Massa node uses.
type Config struct {
	ThreadCount      uint8  `yaml:"thread_count" mapstructure:"thread_count"`           // number of parallel block threads
	T0               uint64 `yaml:"t0" mapstructure:"t0"`                               // period duration in milliseconds
	GenesisTimestamp uint64 `yaml:"genesis_timestamp" mapstructure:"genesis_timestamp"` // unix millis of slot (0,0)
	GenesisKey       string `yaml:"genesis_key" mapstructure:"genesis_key"`             // bs58check-encoded private key signing the genesis blocks

	PeriodsPerCycle  uint64 `yaml:"periods_per_cycle" mapstructure:"periods_per_cycle"` // periods per finality cycle, used by Slot.CycleIndex
	DeltaF0          uint64 `yaml:"delta_f0" mapstructure:"delta_f0"`                   // fitness margin required to finalize a clique member
	EndorsementCount uint32 `yaml:"endorsement_count" mapstructure:"endorsement_count"` // max endorsements carried by one header

	MaxDiscardedBlocks              uint64 `yaml:"max_discarded_blocks" mapstructure:"max_discarded_blocks"`
	MaxDependencyBlocks             uint64 `yaml:"max_dependency_blocks" mapstructure:"max_dependency_blocks"`
	FutureBlockProcessingMaxPeriods uint64 `yaml:"future_block_processing_max_periods" mapstructure:"future_block_processing_max_periods"`
	MaxFutureProcessingBlocks       uint64 `yaml:"max_future_processing_blocks" mapstructure:"max_future_processing_blocks"`
	ForceKeepFinalPeriods           uint64 `yaml:"force_keep_final_periods" mapstructure:"force_keep_final_periods"`
	OperationValidityPeriods        uint64 `yaml:"operation_validity_periods" mapstructure:"operation_validity_periods"`
	MaxGasPerBlock                  uint64 `yaml:"max_gas_per_block" mapstructure:"max_gas_per_block"`

	StatsTimespan     time.Duration `yaml:"stats_timespan" mapstructure:"stats_timespan"`
	ChannelSize       int           `yaml:"channel_size" mapstructure:"channel_size"`
	BootstrapPartSize uint64        `yaml:"bootstrap_part_size" mapstructure:"bootstrap_part_size"`

	ClockCompensationMillis int64 `yaml:"clock_compensation_millis" mapstructure:"clock_compensation_millis"`

	WsEnabled                 bool `yaml:"ws_enabled" mapstructure:"ws_enabled"`
	WsNewBlocksCapacity       int  `yaml:"ws_new_blocks_capacity" mapstructure:"ws_new_blocks_capacity"`
	WsNewBlockHeadersCapacity int  `yaml:"ws_new_block_headers_capacity" mapstructure:"ws_new_block_headers_capacity"`
	WsNewFilledBlocksCapacity int  `yaml:"ws_new_filled_blocks_capacity" mapstructure:"ws_new_filled_blocks_capacity"`

	MaxSendWait          time.Duration `yaml:"max_send_wait" mapstructure:"max_send_wait"`
	BlockDBPruneInterval time.Duration `yaml:"block_db_prune_interval" mapstructure:"block_db_prune_interval"`
	MaxItemReturnCount   uint64        `yaml:"max_item_return_count" mapstructure:"max_item_return_count"`

	MaxBlockOperations uint64 `yaml:"max_block_operations" mapstructure:"max_block_operations"`
	MaxBlockSize       int    `yaml:"max_block_size" mapstructure:"max_block_size"`

	// MaxCliqueCount bounds the number of simultaneously tracked cliques
	// (spec.md §4.5 step 4: "If the total number of cliques exceeds a
	// safety bound, the block is flagged an attack").
	MaxCliqueCount int `yaml:"max_clique_count" mapstructure:"max_clique_count"`
}

// DefaultConfig returns sane single-node / integration-test defaults,
// loosely mirroring the teacher's DefaultConfig pattern of one canonical
// preset plus an explicit Validate step.
func DefaultConfig() *Config {
	return &Config{
		ThreadCount:      32,
		T0:               16000,
		GenesisTimestamp: 0,
		GenesisKey:       "",

		PeriodsPerCycle:  128,
		DeltaF0:          32,
		EndorsementCount: 9,

		MaxDiscardedBlocks:             1000,
		MaxDependencyBlocks:            2048,
		FutureBlockProcessingMaxPeriods: 3,
		MaxFutureProcessingBlocks:      1000,
		ForceKeepFinalPeriods:          10,
		OperationValidityPeriods:       10,
		MaxGasPerBlock:                 1_000_000_000,

		StatsTimespan:     60 * time.Second,
		ChannelSize:       1024,
		BootstrapPartSize: 500,

		WsEnabled:                 false,
		WsNewBlocksCapacity:       1000,
		WsNewBlockHeadersCapacity: 1000,
		WsNewFilledBlocksCapacity: 1000,

		MaxSendWait:          500 * time.Millisecond,
		BlockDBPruneInterval: 5 * time.Second,
		MaxItemReturnCount:   100,

		MaxBlockOperations: 5000,
		MaxBlockSize:       1 << 20,

		MaxCliqueCount: 1000,
	}
}

// Validate checks the config's invariants.
func (c *Config) Validate() error {
	if c.ThreadCount == 0 {
		return fmt.Errorf("consensus: ThreadCount must be > 0")
	}
	if c.T0 == 0 {
		return fmt.Errorf("consensus: T0 must be > 0")
	}
	if c.PeriodsPerCycle == 0 {
		return fmt.Errorf("consensus: PeriodsPerCycle must be > 0")
	}
	if c.DeltaF0 == 0 {
		return fmt.Errorf("consensus: DeltaF0 must be > 0")
	}
	if c.ChannelSize <= 0 {
		return fmt.Errorf("consensus: ChannelSize must be > 0")
	}
	if c.MaxBlockOperations == 0 {
		return fmt.Errorf("consensus: MaxBlockOperations must be > 0")
	}
	if c.MaxBlockSize <= 0 {
		return fmt.Errorf("consensus: MaxBlockSize must be > 0")
	}
	if c.MaxCliqueCount <= 0 {
		return fmt.Errorf("consensus: MaxCliqueCount must be > 0")
	}
	return nil
}

// CycleDuration returns the wall-clock duration of one finality cycle.
func (c *Config) CycleDuration() time.Duration {
	return time.Duration(c.T0*c.PeriodsPerCycle) * time.Millisecond
}
