package domain

// ManagementInfo es la respuesta de /management/info.
type ManagementInfo struct {
	ActiveProfiles          []string `json:"activeProfiles"`
	DisplayRibbonOnProfiles string   `json:"display-ribbon-on-profiles,omitempty"`
}

// LoggerVM describe el nivel de un logger con nombre.
type LoggerVM struct {
	Name            string `json:"name,omitempty"`
	EffectiveLevel  string `json:"effectiveLevel"`
	ConfiguredLevel string `json:"configuredLevel"`
}
