// Package hub wires every discovery component into one process: caches
// (B, C), catalog harvest (D), shell/submodel discovery (E, F),
// negotiation (H), and the three PersistenceMirror instances (A).
package hub
