package export

import (
	"sort"

	"github.com/formdeck/formdeck/field"
	"github.com/formdeck/formdeck/model"
)

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type FieldCount struct {
	FieldID  int    `json:"fieldId"`
	Label    string `json:"label"`
	Answered int    `json:"answered"`
}

// Analytics is the dashboard aggregation over one form's responses.
type Analytics struct {
	Total    int                          `json:"total"`
	ByDay    []DayCount                   `json:"byDay"`
	ByStatus map[model.ResponseStatus]int `json:"byStatus"`
	ByField  []FieldCount                 `json:"byField"`
}

// Aggregate buckets responses by submission day (ascending), by status, and
// counts answers per field in the form's field order.
func Aggregate(form model.Form, responses []model.FormResponse) Analytics {
	a := Analytics{
		Total:    len(responses),
		ByStatus: make(map[model.ResponseStatus]int),
	}

	days := make(map[string]int)
	answered := make(map[int]int)
	for _, resp := range responses {
		days[resp.SubmittedAt.Format("2006-01-02")]++
		a.ByStatus[resp.Status]++
		for _, v := range resp.Values {
			answered[v.FieldID]++
		}
	}

	for day, n := range days {
		a.ByDay = append(a.ByDay, DayCount{Day: day, Count: n})
	}
	sort.Slice(a.ByDay, func(i, j int) bool { return a.ByDay[i].Day < a.ByDay[j].Day })

	for _, f := range form.Fields {
		if f.Type == field.Section {
			continue
		}
		a.ByField = append(a.ByField, FieldCount{
			FieldID:  f.ID,
			Label:    f.Label,
			Answered: answered[f.ID],
		})
	}

	return a
}
