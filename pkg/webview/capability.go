package webview

import "strings"

// Capability describes an optional operation the active backend supports.
// Operations gated on a capability the backend lacks fail with
// ErrUnsupported instead of being silently absent.
type Capability uint32

const (
	// CapScriptResult: EvaluateScript can deliver a result to a continuation.
	CapScriptResult Capability = 1 << iota
	// CapZoom: SetZoom adjusts the page zoom factor.
	CapZoom
	// CapVisibility: SetVisible shows or hides the view.
	CapVisibility
	// CapFullscreen: SetFullscreen toggles engine-managed fullscreen.
	CapFullscreen
	// CapFileDrop: the engine reports drag-and-drop of files.
	CapFileDrop
	// CapTitleChanged: the engine reports document title changes.
	CapTitleChanged
	// CapClearBrowsingData: ClearBrowsingData wipes the engine data store.
	CapClearBrowsingData
	// CapIncognito: the engine can run with an ephemeral data store.
	CapIncognito
	// CapDevTools: the engine ships an inspector that can be enabled.
	CapDevTools
	// CapTransparency: the view background can be made transparent.
	CapTransparency
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapScriptResult, "script-result"},
	{CapZoom, "zoom"},
	{CapVisibility, "visibility"},
	{CapFullscreen, "fullscreen"},
	{CapFileDrop, "file-drop"},
	{CapTitleChanged, "title-changed"},
	{CapClearBrowsingData, "clear-browsing-data"},
	{CapIncognito, "incognito"},
	{CapDevTools, "devtools"},
	{CapTransparency, "transparency"},
}

// Has reports whether all capabilities in want are present.
func (c Capability) Has(want Capability) bool { return c&want == want }

func (c Capability) String() string {
	var parts []string
	for _, e := range capabilityNames {
		if c.Has(e.cap) {
			parts = append(parts, e.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
