package catalog

import "math"

// Reference is the ideal-condition snapshot stored with a plant
type Reference struct {
	Name             string
	IdealTemperature *float64
	IdealBrightness  *float64
	ImageURL         string
}

// Derive builds a reference from a catalog record. Fields that cannot be
// parsed are left nil and reported; the rest are kept.
func Derive(item *Item) (Reference, []error) {
	ref := Reference{
		Name:     item.DisplayName(),
		ImageURL: item.Img,
	}
	var errs []error

	minT, okMin, errMin := ParseTemperature("Temperature min", item.TemperatureMin)
	maxT, okMax, errMax := ParseTemperature("Temperature max", item.TemperatureMax)
	for _, err := range []error{errMin, errMax} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if okMin && okMax && errMin == nil && errMax == nil {
		mid := (minT + maxT) / 2
		ref.IdealTemperature = &mid
	}

	if item.LightIdeal != "" {
		r, err := ParseLightRange(item.LightIdeal)
		if err != nil {
			errs = append(errs, err)
		} else if r.Open || r.Max > 0 {
			ideal := math.Floor(r.Ideal())
			ref.IdealBrightness = &ideal
		}
	}

	return ref, errs
}

// BuildDetails assembles the plant-details view for an item
func BuildDetails(item *Item) *Details {
	ref, errs := Derive(item)

	d := &Details{
		ID:          string(item.ID),
		Name:        item.LatinName,
		CommonName:  item.CommonName.First(),
		Image:       item.Img,
		Temperature: ref.IdealTemperature,
		Brightness:  ref.IdealBrightness,
		Description: item.Description,
		Category:    item.Categories,
		Origin:      item.Origin.Join(),
		Climat:      item.Climat,
		CareInfo:    CareInfo{Watering: item.Watering},
	}
	if d.CareInfo.Watering == "" {
		d.CareInfo.Watering = "Unknown"
	}

	if v, ok, err := ParseTemperature("Temperature min", item.TemperatureMin); ok && err == nil {
		d.CareInfo.MinTemp = &v
	}
	if v, ok, err := ParseTemperature("Temperature max", item.TemperatureMax); ok && err == nil {
		d.CareInfo.MaxTemp = &v
	}
	if item.LightIdeal != "" {
		if r, err := ParseLightRange(item.LightIdeal); err == nil {
			lo := r.Min
			d.CareInfo.MinLight = &lo
			if !r.Open {
				hi := r.Max
				d.CareInfo.MaxLight = &hi
			}
		}
	}

	for _, err := range errs {
		d.Warnings = append(d.Warnings, err.Error())
	}
	return d
}
