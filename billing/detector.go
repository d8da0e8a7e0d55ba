// Package billing turns calendar events into billable sessions and invoice totals.
package billing

import (
	"strings"

	"consulta-backend/models"
	"consulta-backend/utils"
)

// Therapist is what the detector attaches to an event.
type Therapist struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Manager bool   `json:"-"`
}

// Unassigned is returned for titles that name no known therapist.
var Unassigned = Therapist{Name: "Sin asignar"}

// Assigned reports whether t is a real therapist.
func (t Therapist) Assigned() bool { return t.ID != 0 }

// Tags returns every non-empty segment enclosed by two slashes, trimmed, in order
// of appearance. Adjacent tags share their slash, so a date like "10/11" in front
// of "/sonia/" does not hide the tag.
func Tags(title string) []string {
	parts := strings.Split(title, "/")
	if len(parts) < 3 {
		return nil
	}
	var out []string
	for _, p := range parts[1 : len(parts)-1] {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type entry struct {
	therapist Therapist
	keys      []string   // raw tag keys: calendar tag, first name, aliases
	names     [][]string // folded full name, calendar tag, first name and aliases
}

type rule struct {
	name  string
	match func(e entry, title string, tags []string) bool
}

// rules run in order; the first rule with a hit decides.
var rules = []rule{
	{name: "exact-tag", match: func(e entry, _ string, tags []string) bool {
		for _, tag := range tags {
			for _, k := range e.keys {
				if strings.EqualFold(tag, k) {
					return true
				}
			}
		}
		return false
	}},
	{name: "normalized-tag", match: func(e entry, _ string, tags []string) bool {
		for _, tag := range tags {
			ft := strings.Join(utils.Words(tag), " ")
			for _, k := range e.keys {
				if ft != "" && ft == strings.Join(utils.Words(k), " ") {
					return true
				}
			}
		}
		return false
	}},
	{name: "whole-word", match: func(e entry, title string, _ []string) bool {
		words := utils.Words(title)
		for _, name := range e.names {
			if containsRun(words, name) {
				return true
			}
		}
		return false
	}},
}

// Detector maps event titles to therapists. Build one per request from the current
// therapist table; it holds no global state.
type Detector struct {
	entries []entry
}

// NewDetector indexes therapists in the given order (callers pass sort_order, id).
func NewDetector(therapists []models.Therapist) *Detector {
	d := &Detector{entries: make([]entry, 0, len(therapists))}
	for _, t := range therapists {
		aliases, _ := utils.ParseStringList(t.Aliases)
		e := entry{therapist: Therapist{ID: t.ID, Name: t.Name, Color: t.Color, Manager: t.IsManager}}

		first := firstName(t.Name)
		for _, k := range append([]string{t.CalendarTag, first}, aliases...) {
			if k = strings.TrimSpace(k); k != "" {
				e.keys = append(e.keys, k)
			}
		}
		for _, n := range append([]string{t.Name, t.CalendarTag, first}, aliases...) {
			if w := utils.Words(n); len(w) > 0 {
				e.names = append(e.names, w)
			}
		}
		d.entries = append(d.entries, e)
	}
	return d
}

// Detect never fails: an unknown title yields Unassigned.
func (d *Detector) Detect(title string) Therapist {
	t, _ := d.DetectRule(title)
	return t
}

// DetectRule also reports which rule matched ("" for Unassigned).
func (d *Detector) DetectRule(title string) (Therapist, string) {
	tags := Tags(title)
	for _, r := range rules {
		if len(tags) == 0 && r.name != "whole-word" {
			continue
		}
		for _, e := range d.entries {
			if r.match(e, title, tags) {
				return e.therapist, r.name
			}
		}
	}
	return Unassigned, ""
}

func firstName(full string) string {
	if f := strings.Fields(full); len(f) > 0 {
		return f[0]
	}
	return ""
}

// containsRun reports whether needle appears as a contiguous run inside words.
func containsRun(words, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(words); i++ {
		for j := range needle {
			if words[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
