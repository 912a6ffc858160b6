// Package router maps a studio to the calendar that receives its events.
package router

import "github.com/studiomerlo/dentsync/pkg/config"

// Router is a pure studio-to-calendar lookup; it makes no remote calls.
type Router struct {
	def      string
	byStudio map[int]string
}

// New builds a router from the calendars section of the configuration.
func New(c config.Calendars) Router {
	byStudio := make(map[int]string, len(c.ByStudio))
	for studio, id := range c.ByStudio {
		byStudio[studio] = id
	}
	return Router{def: c.Default, byStudio: byStudio}
}

// CalendarID resolves the target calendar for a studio. Studio 0 (daily
// notes) goes to the default calendar; a studio without a mapping falls
// back to studio 1's calendar, then to the default.
func (r Router) CalendarID(studio int) string {
	if studio == 0 {
		return r.def
	}
	if id, ok := r.byStudio[studio]; ok && id != "" {
		return id
	}
	if id, ok := r.byStudio[1]; ok && id != "" {
		return id
	}
	return r.def
}
