// Package tabs owns the ordered collection of browsing contexts, the
// active-tab pointer, and each tab's lazily created rendering surface.
//
// Invariants:
//   - exactly one tab is active, or zero when the registry is empty
//   - the active id always refers to a live entry
//   - the active external tab's surface is attached and sized to the
//     content area; every other surface is detached but alive
//   - closing the active tab activates the next tab in insertion order,
//     else the previous one, else nothing
//
// Surfaces are driven through the surface.Engine / surface.Handle
// interfaces; the registry never talks to the rendering engine directly.
package tabs
