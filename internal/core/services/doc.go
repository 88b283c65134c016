// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion path runs Normalizer → Pipeline → {ShadowCache, TriggerMatcher}
// → Engine. Each service owns its state explicitly; nothing is package-global,
// so several vaults or test instances can coexist in one process.
//
// Services are pure Go with no CGO.
package services
