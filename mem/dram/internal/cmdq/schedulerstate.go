package cmdq

// SchedulerState tracks, per (rank, bank), what the controller believes the
// bank will hold once its command queue drains: whether an ACTIVATE has
// been queued or issued, which row it opened, how many consecutive
// row-buffer hits have been served since, and whether the bank is blocked
// on a pending refresh.
type SchedulerState struct {
	rows int

	activateQueued [][]bool
	effectiveRow   [][]int
	starvation     [][]int
	needRefresh    [][]bool
}

// NewSchedulerState creates scheduler state for the given topology. rows is
// the sentinel value used for effectiveRow when a bank is closed.
func NewSchedulerState(ranks, banks, rows int) *SchedulerState {
	s := &SchedulerState{rows: rows}
	s.activateQueued = make([][]bool, ranks)
	s.effectiveRow = make([][]int, ranks)
	s.starvation = make([][]int, ranks)
	s.needRefresh = make([][]bool, ranks)

	for r := 0; r < ranks; r++ {
		s.activateQueued[r] = make([]bool, banks)
		s.effectiveRow[r] = make([]int, banks)
		s.starvation[r] = make([]int, banks)
		s.needRefresh[r] = make([]bool, banks)
		for b := 0; b < banks; b++ {
			s.effectiveRow[r][b] = rows
		}
	}

	return s
}

// ActivateQueued reports whether the controller has queued or issued an
// ACTIVATE bringing some row into the bank's buffer.
func (s *SchedulerState) ActivateQueued(rank, bank int) bool {
	return s.activateQueued[rank][bank]
}

// EffectiveRow returns the row the controller believes is (or will be)
// open, or the ROWS sentinel if closed.
func (s *SchedulerState) EffectiveRow(rank, bank int) int {
	return s.effectiveRow[rank][bank]
}

// Starvation returns the number of consecutive row-buffer hits served
// since the last ACTIVATE.
func (s *SchedulerState) Starvation(rank, bank int) int {
	return s.starvation[rank][bank]
}

// NeedRefresh reports whether the bank is blocked on a pending refresh.
func (s *SchedulerState) NeedRefresh(rank, bank int) bool {
	return s.needRefresh[rank][bank]
}

// SetNeedRefresh flags or clears the refresh block for a bank.
func (s *SchedulerState) SetNeedRefresh(rank, bank int, need bool) {
	s.needRefresh[rank][bank] = need
}

// MarkOpened records that the controller has queued an ACTIVATE(row) and
// resets the starvation counter.
func (s *SchedulerState) MarkOpened(rank, bank, row int) {
	s.activateQueued[rank][bank] = true
	s.effectiveRow[rank][bank] = row
	s.starvation[rank][bank] = 0
}

// MarkClosed records that the controller expects the bank to end up
// closed once its queue drains.
func (s *SchedulerState) MarkClosed(rank, bank int) {
	s.activateQueued[rank][bank] = false
	s.effectiveRow[rank][bank] = s.rows
}

// RecordHit increments the starvation counter after a row-buffer-hit
// request is queued without an intervening ACTIVATE.
func (s *SchedulerState) RecordHit(rank, bank int) {
	s.starvation[rank][bank]++
}
