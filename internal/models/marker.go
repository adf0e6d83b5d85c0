package models

// Marker describes how a signal type is rendered on the client map.
// The icon names follow the Material Design Icons set the clients already use.
type Marker struct {
	Type  AlertType `json:"type"`
	Label string    `json:"label"`
	Icon  string    `json:"icon"`
	Color string    `json:"color"`
}

var markers = map[AlertType]Marker{
	AlertTypeSecurity: {Type: AlertTypeSecurity, Label: "SECURITY", Icon: "mdi:shield-alert", Color: "red"},
	AlertTypeMedical:  {Type: AlertTypeMedical, Label: "MEDICAL", Icon: "mdi:ambulance", Color: "green"},
	AlertTypeFire:     {Type: AlertTypeFire, Label: "FIRE", Icon: "mdi:fire", Color: "orange"},
	AlertTypeAccident: {Type: AlertTypeAccident, Label: "ACCIDENT", Icon: "mdi:car-emergency", Color: "yellow"},
	AlertTypeGhost:    {Type: AlertTypeGhost, Label: "SAFE WALK", Icon: "mdi:eye-off", Color: "cyan"},
}

// MarkerByType returns the marker metadata for a signal type.
// Unknown or empty types fall back to the security marker.
func MarkerByType(t AlertType) Marker {
	if m, ok := markers[t]; ok {
		return m
	}
	return markers[AlertTypeSecurity]
}

// Markers lists the user-selectable emergency types in display order.
// Ghost is excluded: it is started from its own surface, not the type picker.
func Markers() []Marker {
	return []Marker{
		markers[AlertTypeSecurity],
		markers[AlertTypeMedical],
		markers[AlertTypeFire],
		markers[AlertTypeAccident],
	}
}
