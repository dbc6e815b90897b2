package config

import "fmt"

// MemParams is the typed view of the config keys the timing core consumes,
// resolved once from a raw Config.
type MemParams struct {
	Ranks    int
	Banks    int
	Rows     int
	Cols     int
	Channels int

	CPUFreq int
	CLK     int

	TRCD  uint64
	TRP   uint64
	TRAS  uint64
	TRC   uint64
	TCCD  uint64
	TRFC  uint64
	TRFI  uint64
	TRRDR uint64
	TRRDW uint64
	TFAW  uint64
	TCWD  uint64
	TBURST uint64
	TWR   uint64
	TRTP  uint64
	TWTR  uint64
	AL    uint64

	RefreshRows             int
	BanksPerRefresh         int
	UseRefresh              bool
	DelayedRefreshThreshold int

	QueueSize           int
	StarvationThreshold int
	ClosePage           int
	ScheduleScheme      int

	AddressMappingScheme string
	TraceReader          string
}

// requiredKeys are the keys without which a memory controller cannot be
// built: missing any of them is a configuration error, not a default.
var requiredKeys = []string{
	"RANKS", "BANKS", "ROWS", "COLS", "CHANNELS",
	"tRCD", "tRP", "tRAS", "tRC", "tCCD",
}

// ResolveMemParams reads every key the core consumes out of c, applying
// the documented defaults for optional keys and failing on missing
// required keys or nonsensical combinations.
func ResolveMemParams(c *Config) (*MemParams, error) {
	for _, key := range requiredKeys {
		if !c.KeyExists(key) {
			return nil, fmt.Errorf("configuration error: missing required key %q", key)
		}
	}

	p := &MemParams{}

	var err error
	if p.Ranks, err = c.Int("RANKS"); err != nil {
		return nil, err
	}
	if p.Banks, err = c.Int("BANKS"); err != nil {
		return nil, err
	}
	if p.Rows, err = c.Int("ROWS"); err != nil {
		return nil, err
	}
	if p.Cols, err = c.Int("COLS"); err != nil {
		return nil, err
	}
	if p.Channels, err = c.Int("CHANNELS"); err != nil {
		return nil, err
	}

	p.CPUFreq = c.IntDefault("CPUFreq", 1)
	p.CLK = c.IntDefault("CLK", 1)

	if p.TRCD, err = c.Uint64("tRCD"); err != nil {
		return nil, err
	}
	if p.TRP, err = c.Uint64("tRP"); err != nil {
		return nil, err
	}
	if p.TRAS, err = c.Uint64("tRAS"); err != nil {
		return nil, err
	}
	if p.TRC, err = c.Uint64("tRC"); err != nil {
		return nil, err
	}
	if p.TCCD, err = c.Uint64("tCCD"); err != nil {
		return nil, err
	}

	p.TRFC = c.Uint64Default("tRFC", 0)
	p.TRFI = c.Uint64Default("tRFI", 0)
	p.TRRDR = c.Uint64Default("tRRDR", 0)
	p.TRRDW = c.Uint64Default("tRRDW", 0)
	p.TFAW = c.Uint64Default("tFAW", 0)
	p.TCWD = c.Uint64Default("tCWD", 0)
	p.TBURST = c.Uint64Default("tBURST", 4)
	p.TWR = c.Uint64Default("tWR", 0)
	p.TRTP = c.Uint64Default("tRTP", 0)
	p.TWTR = c.Uint64Default("tWTR", 0)
	p.AL = c.Uint64Default("AL", 0)

	p.RefreshRows = c.IntDefault("RefreshRows", 1)
	p.BanksPerRefresh = c.IntDefault("BanksPerRefresh", p.Banks)
	p.UseRefresh = c.Bool("UseRefresh")
	p.DelayedRefreshThreshold = c.IntDefault("DelayedRefreshThreshold", 1)

	p.QueueSize = c.IntDefault("QueueSize", 8)
	p.StarvationThreshold = c.IntDefault("StarvationThreshold", 4)
	p.ClosePage = c.IntDefault("ClosePage", 0)
	p.ScheduleScheme = c.IntDefault("ScheduleScheme", 1)

	p.AddressMappingScheme = c.String("AddressMappingScheme")
	p.TraceReader = c.StringDefault("TraceReader", "NVMainTrace")

	if p.UseRefresh && p.BanksPerRefresh > p.Banks {
		return nil, fmt.Errorf(
			"configuration error: BanksPerRefresh (%d) > BANKS (%d)",
			p.BanksPerRefresh, p.Banks)
	}
	if p.UseRefresh && p.Banks%p.BanksPerRefresh != 0 {
		return nil, fmt.Errorf(
			"configuration error: BanksPerRefresh (%d) does not divide BANKS (%d)",
			p.BanksPerRefresh, p.Banks)
	}
	if p.ClosePage < 0 || p.ClosePage > 2 {
		return nil, fmt.Errorf("configuration error: ClosePage must be 0, 1, or 2, got %d", p.ClosePage)
	}
	if p.ScheduleScheme < 0 || p.ScheduleScheme > 2 {
		return nil, fmt.Errorf("configuration error: ScheduleScheme must be 0, 1, or 2, got %d", p.ScheduleScheme)
	}

	return p, nil
}
