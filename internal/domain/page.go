package domain

// PageContext is recomputed on every navigation.
type PageContext struct {
	Path          string   `json:"path"`
	AllowedPaths  []string `json:"allowedPaths"`
	RequiredRoles []Role   `json:"requiredRoles,omitempty"` // empty means any authenticated role
}

// VisibilityState is the widget's own render state.
type VisibilityState struct {
	PanelOpen         bool `json:"isPanelOpen"`
	PermanentlyHidden bool `json:"isPermanentlyHidden"` // one-way "don't show again" latch
}
