package inverter

import (
	"math"

	"github.com/tejusbharadwaj/pvforecast/internal/models"
	"github.com/tejusbharadwaj/pvforecast/internal/series"
)

// Fronius archive channels used by the energy table.
const (
	ChannelProduced      = "EnergyReal_WAC_Sum_Produced"
	ChannelConsumed      = "EnergyReal_WAC_Sum_Consumed"
	ChannelMinusAbsolute = "EnergyReal_WAC_Minus_Absolute"
	ChannelPlusAbsolute  = "EnergyReal_WAC_Plus_Absolute"
)

// DefaultChannels are queried when no channels are configured.
var DefaultChannels = []string{
	ChannelProduced,
	ChannelMinusAbsolute,
	ChannelPlusAbsolute,
}

// EnergyRecords converts an archive table into energy rows. The meter
// counters are absolute; DiffMinus and DiffPlus hold the change since the
// previous row and are unset on the first row or when either side is missing.
func EnergyRecords(table *series.Table) []models.EnergyRecord {
	if table.Empty() {
		return nil
	}

	records := make([]models.EnergyRecord, 0, table.Len())
	for i, row := range table.Rows {
		rec := models.EnergyRecord{
			Time:          row.Time,
			Produced:      cell(table, row, ChannelProduced),
			Consumed:      cell(table, row, ChannelConsumed),
			MinusAbsolute: cell(table, row, ChannelMinusAbsolute),
			PlusAbsolute:  cell(table, row, ChannelPlusAbsolute),
		}
		if i > 0 {
			prev := records[i-1]
			rec.DiffMinus = diff(prev.MinusAbsolute, rec.MinusAbsolute)
			rec.DiffPlus = diff(prev.PlusAbsolute, rec.PlusAbsolute)
		}
		records = append(records, rec)
	}
	return records
}

func cell(table *series.Table, row series.Row, column string) *float64 {
	idx := table.ColumnIndex(column)
	if idx < 0 {
		return nil
	}
	v := row.Values[idx]
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func diff(prev, cur *float64) *float64 {
	if prev == nil || cur == nil {
		return nil
	}
	d := *cur - *prev
	return &d
}
