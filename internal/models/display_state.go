package models

// DisplayState is the single mutually-exclusive state shown for a unit
type DisplayState string

const (
	StateOnRouteOn          DisplayState = "on_route_on"
	StateOnRouteOff         DisplayState = "on_route_off"
	StateOnAtBase           DisplayState = "on_at_base"
	StateShelteredAtBase    DisplayState = "sheltered_at_base"
	StateShelteredSecondary DisplayState = "sheltered_secondary"
	StateAtDisposal         DisplayState = "at_disposal"
	StateGPSFault           DisplayState = "gps_fault"
)

// StopHighlightColor replaces the state color on cards with an active stop alert
const StopHighlightColor = "#FFC107"

// AllDisplayStates lists every state in legend order
var AllDisplayStates = []DisplayState{
	StateOnRouteOn,
	StateOnAtBase,
	StateShelteredAtBase,
	StateShelteredSecondary,
	StateAtDisposal,
	StateOnRouteOff,
	StateGPSFault,
}

// Rendering for values outside AllDisplayStates
const (
	UnknownStateColor = "#9E9E9E"
	UnknownStateLabel = "Desconocido"
)

// Color returns the display color for the state
func (s DisplayState) Color() string {
	switch s {
	case StateOnRouteOn:
		return "#4CAF50"
	case StateOnRouteOff:
		return "#D32F2F"
	case StateOnAtBase:
		return "#B37305"
	case StateShelteredAtBase:
		return "#337ab7"
	case StateShelteredSecondary:
		return "#5BC0DE"
	case StateAtDisposal:
		return "#6D4C41"
	case StateGPSFault:
		return "#757575"
	default:
		return UnknownStateColor
	}
}

// Label returns the operator-facing text for the state
func (s DisplayState) Label() string {
	switch s {
	case StateOnRouteOn:
		return "Encendida 🔥"
	case StateOnRouteOff:
		return "Apagada ❄️"
	case StateOnAtBase:
		return "Encendida (Sede) 🔥"
	case StateShelteredAtBase:
		return "Resguardo (Sede) 🛡️"
	case StateShelteredSecondary:
		return "Resguardo (Secundario) 🛡️"
	case StateAtDisposal:
		return "En Botadero 🚛"
	case StateGPSFault:
		return "Falla GPS 📡"
	default:
		return UnknownStateLabel
	}
}

// IsValid reports whether s is one of the known states
func (s DisplayState) IsValid() bool {
	for _, known := range AllDisplayStates {
		if s == known {
			return true
		}
	}
	return false
}

// LegendEntry is one row of the color legend
type LegendEntry struct {
	State DisplayState `json:"state"`
	Label string       `json:"label"`
	Color string       `json:"color"`
}

// Legend returns the state to color legend
func Legend() []LegendEntry {
	legend := make([]LegendEntry, 0, len(AllDisplayStates))
	for _, s := range AllDisplayStates {
		legend = append(legend, LegendEntry{State: s, Label: s.Label(), Color: s.Color()})
	}
	return legend
}
