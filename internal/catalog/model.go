// Package catalog talks to the third-party house plant database and turns
// its loosely shaped records into ideal-condition references.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// StringList decodes either a single string or an array of strings
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
			return nil
		}
		*l = StringList{s}
		return nil
	}
}

// First returns the first entry or ""
func (l StringList) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

// Join returns the entries separated by ", "
func (l StringList) Join() string {
	return strings.Join(l, ", ")
}

// Degrees is a temperature in both scales. Either side may be absent.
type Degrees struct {
	C json.RawMessage `json:"C"`
	F json.RawMessage `json:"F"`
}

// Celsius returns the Celsius value. ok is false when it is absent.
func (d *Degrees) Celsius() (value float64, ok bool, err error) {
	if d == nil || len(d.C) == 0 || string(d.C) == "null" {
		return 0, false, nil
	}

	raw := strings.Trim(string(d.C), `" `)
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, true, fmt.Errorf("not a number: %q", raw)
	}
	return v, true, nil
}

// Item is one catalog record. Every field is optional.
type Item struct {
	ID             FlexString `json:"id"`
	LatinName      string     `json:"Latin name"`
	CommonName     StringList `json:"Common name"`
	Family         string     `json:"Family"`
	Img            string     `json:"Img"`
	LightIdeal     string     `json:"Light ideal"`
	LightTolerated string     `json:"Light tolered"`
	TemperatureMin *Degrees   `json:"Temperature min"`
	TemperatureMax *Degrees   `json:"Temperature max"`
	Watering       string     `json:"Watering"`
	Description    string     `json:"Description"`
	Categories     string     `json:"Categories"`
	Origin         StringList `json:"Origin"`
	Climat         string     `json:"Climat"`
}

// DisplayName prefers the latin name, then the first common name
func (i *Item) DisplayName() string {
	if i.LatinName != "" {
		return i.LatinName
	}
	return i.CommonName.First()
}

type searchHit struct {
	Item *Item `json:"item"`
}

// Summary is one search result as returned to the UI
type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CommonName string `json:"commonName"`
	Image      string `json:"image,omitempty"`
	Category   string `json:"category"`
	Watering   string `json:"watering"`
}

func summarize(item *Item) Summary {
	return Summary{
		ID:         string(item.ID),
		Name:       item.LatinName,
		CommonName: item.CommonName.First(),
		Image:      item.Img,
		Category:   item.Categories,
		Watering:   item.Watering,
	}
}

// CareInfo is the parsed care section of a plant detail view
type CareInfo struct {
	Watering string   `json:"watering"`
	MinLight *float64 `json:"minLight"`
	MaxLight *float64 `json:"maxLight"`
	MinTemp  *float64 `json:"minTemp"`
	MaxTemp  *float64 `json:"maxTemp"`
}

// Details is the plant-details view returned to the UI
type Details struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	CommonName  string   `json:"commonName"`
	Image       string   `json:"image,omitempty"`
	CareInfo    CareInfo `json:"careInfo"`
	Temperature *float64 `json:"temperature"`
	Brightness  *float64 `json:"brightness"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Origin      string   `json:"origin"`
	Climat      string   `json:"climat"`
	Warnings    []string `json:"warnings,omitempty"`
}
