package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/internal/xcal"
	"github.com/cyp0633/librecur/recurrence"
)

// OccurrenceView is the JSON form of one occurrence.
type OccurrenceView struct {
	UID          string `json:"uid,omitempty"`
	Start        string `json:"start"`
	End          string `json:"end,omitempty"`
	RecurrenceID string `json:"recurrence_id,omitempty"`
	Override     bool   `json:"override,omitempty"`
}

// ExpandResult is the JSON document written by expand.
type ExpandResult struct {
	Count       int              `json:"count"`
	Occurrences []OccurrenceView `json:"occurrences"`
}

func writeOccurrences(w io.Writer, format string, r *caltime.Resolver, occs []recurrence.Occurrence) error {
	switch format {
	case "xcal":
		return xcal.Encode(w, r, occs)
	case "json":
		views, err := viewsOf(r, occs)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ExpandResult{Count: len(views), Occurrences: views})
	default:
		views, err := viewsOf(r, occs)
		if err != nil {
			return err
		}
		for _, v := range views {
			line := v.Start
			if v.End != "" {
				line += "  " + v.End
			}
			line += "  " + v.UID
			if v.Override {
				line += "  (override of " + v.RecurrenceID + ")"
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	}
}

func viewsOf(r *caltime.Resolver, occs []recurrence.Occurrence) ([]OccurrenceView, error) {
	views := make([]OccurrenceView, 0, len(occs))
	for _, occ := range occs {
		v := OccurrenceView{
			UID:          uidOf(occ.Source),
			Start:        occ.Start().RFC3339(r),
			RecurrenceID: occ.RecurrenceID.RFC3339(r),
			Override:     occ.Override != nil,
		}
		if !occ.Period.IsInstant() {
			end, err := occ.Period.End(r)
			if err != nil {
				return nil, err
			}
			v.End = end.RFC3339(r)
		}
		views = append(views, v)
	}
	return views, nil
}

func uidOf(source any) string {
	comp, ok := source.(*ical.Component)
	if !ok || comp == nil {
		return ""
	}
	if p := comp.Props.Get(ical.PropUID); p != nil {
		return p.Value
	}
	return ""
}
