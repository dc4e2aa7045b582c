// Package xcal renders expanded occurrences as an RFC 6321 xCal document.
package xcal

import (
	"io"
	"strings"

	"github.com/beevik/etree"
	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/period"
	"github.com/cyp0633/librecur/recurrence"
)

// Namespace is the xCal namespace.
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

// ProdID identifies documents written by this package.
const ProdID = "-//librecur//recurctl//EN"

const (
	TagICalendar  = "icalendar"
	TagVCalendar  = "vcalendar"
	TagProperties = "properties"
	TagComponents = "components"
	TagParameters = "parameters"
)

// Document builds an xCal document holding one component per occurrence. Components keep
// the name and UID of the iCalendar component the occurrence came from.
func Document(r *caltime.Resolver, occs []recurrence.Occurrence) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(TagICalendar)
	root.CreateAttr("xmlns", Namespace)

	cal := root.CreateElement(TagVCalendar)
	props := cal.CreateElement(TagProperties)
	textProp(props, "version", "2.0")
	textProp(props, "prodid", ProdID)

	comps := cal.CreateElement(TagComponents)
	for _, occ := range occs {
		if err := addOccurrence(comps, r, occ); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Encode writes the document for occs to w, indented by two spaces.
func Encode(w io.Writer, r *caltime.Resolver, occs []recurrence.Occurrence) error {
	doc, err := Document(r, occs)
	if err != nil {
		return err
	}
	doc.Indent(2)
	_, err = doc.WriteTo(w)
	return err
}

func addOccurrence(parent *etree.Element, r *caltime.Resolver, occ recurrence.Occurrence) error {
	name, uid := describe(occ.Source)
	comp := parent.CreateElement(name)
	props := comp.CreateElement(TagProperties)
	if uid != "" {
		textProp(props, "uid", uid)
	}
	if !occ.RecurrenceID.IsZero() {
		valueProp(props, "recurrence-id", occ.RecurrenceID)
	}
	valueProp(props, "dtstart", occ.Period.Start())
	return addEnd(props, r, occ.Period)
}

func addEnd(props *etree.Element, r *caltime.Resolver, p period.Period) error {
	switch {
	case p.HasEnd():
		end, err := p.End(r)
		if err != nil {
			return err
		}
		valueProp(props, "dtend", end)
	case p.HasDuration():
		d, err := p.Duration(r)
		if err != nil {
			return err
		}
		textValue(props.CreateElement("duration"), "duration", d.String())
	}
	return nil
}

// describe returns the lower-case component name and UID of an iCalendar source.
func describe(source any) (name, uid string) {
	comp, ok := source.(*ical.Component)
	if !ok || comp == nil {
		return "vevent", ""
	}
	if p := comp.Props.Get(ical.PropUID); p != nil {
		uid = p.Value
	}
	return strings.ToLower(comp.Name), uid
}

func textProp(props *etree.Element, name, text string) {
	textValue(props.CreateElement(name), "text", text)
}

func textValue(prop *etree.Element, typ, text string) {
	prop.CreateElement(typ).SetText(text)
}

// valueProp writes a date or date-time property, adding a tzid parameter for zoned values.
func valueProp(props *etree.Element, name string, v caltime.Value) {
	prop := props.CreateElement(name)
	if v.Kind() == caltime.KindZoned {
		params := prop.CreateElement(TagParameters)
		textProp(params, "tzid", v.Zone())
	}
	if !v.HasTime() {
		textValue(prop, "date", v.Wall().Format("2006-01-02"))
		return
	}
	text := v.Wall().Format("2006-01-02T15:04:05")
	if v.IsUTC() {
		text += "Z"
	}
	textValue(prop, "date-time", text)
}
