package dram

import (
	"github.com/sarchlab/nvmain/mem/dram/internal/addressmapping"
	"github.com/sarchlab/nvmain/mem/dram/internal/org"
)

// Timing is the set of device timing constants a channel is built with.
type Timing = org.Timing

// Field identifies one of the five coordinates a physical address
// decomposes into.
type Field = addressmapping.Field

// The address fields, named after the tokens used in AddressMappingScheme
// config strings.
const (
	FieldRow     = addressmapping.FieldRow
	FieldCol     = addressmapping.FieldCol
	FieldBank    = addressmapping.FieldBank
	FieldRank    = addressmapping.FieldRank
	FieldChannel = addressmapping.FieldChannel
)

// DefaultOrder is the field order used when no AddressMappingScheme is
// configured.
var DefaultOrder = addressmapping.DefaultOrder

// ParseScheme parses a colon-separated permutation string such as
// "C:BK:RK:CH:R" into a field order, least-significant field first.
func ParseScheme(scheme string) ([]Field, error) {
	return addressmapping.ParseScheme(scheme)
}

// Translator maps physical byte addresses to DRAM coordinates and back.
type Translator = addressmapping.Translator

// Topology gives the count of each address field, i.e. the DRAM
// organisation a Translator or Root routes across.
type Topology = addressmapping.Topology

// NewTranslator builds a Translator for the given topology and field
// order. A nil order uses DefaultOrder.
func NewTranslator(topology Topology, colBytes uint64, order []Field) *Translator {
	return addressmapping.NewTranslator(topology, colBytes, order)
}

// Stats is the per-channel command counters and energy totals PrintStats
// reports.
type Stats = org.Stats
