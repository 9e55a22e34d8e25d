package enrich

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Backlog aggregates an enriched listing for a dashboard header.
type Backlog struct {
	Total      int              `json:"total"`
	Dated      int              `json:"com_data"`
	MeanAge    float64          `json:"idade_media"`
	MedianAge  float64          `json:"idade_mediana"`
	P90Age     float64          `json:"idade_p90"`
	OldestAge  int              `json:"idade_maxima"`
	Urgent     int              `json:"urgentes"`
	Overdue    int              `json:"vencidos"`
	ByPriority map[Priority]int `json:"por_prioridade"`
	ByCategory map[Category]int `json:"por_categoria"`
}

// Summarize computes counts and age statistics. Ages cover only records
// with a date; they are zero when none has one.
func Summarize(records []Record) Backlog {
	b := Backlog{
		Total:      len(records),
		ByPriority: make(map[Priority]int),
		ByCategory: make(map[Category]int),
	}

	ages := make([]float64, 0, len(records))
	for _, r := range records {
		b.ByPriority[r.Priority]++
		b.ByCategory[r.Category]++
		if r.Deadline != nil {
			if r.Deadline.IsUrgent {
				b.Urgent++
			}
			if r.Deadline.IsOverdue {
				b.Overdue++
			}
		}
		if r.DaysElapsed != nil {
			ages = append(ages, float64(*r.DaysElapsed))
		}
	}

	b.Dated = len(ages)
	if len(ages) == 0 {
		return b
	}

	sort.Float64s(ages)
	b.MeanAge = stat.Mean(ages, nil)
	b.MedianAge = stat.Quantile(0.5, stat.Empirical, ages, nil)
	b.P90Age = stat.Quantile(0.9, stat.Empirical, ages, nil)
	b.OldestAge = int(ages[len(ages)-1])
	return b
}
