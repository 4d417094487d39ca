package types

// Version is the canonical project version. All components (CLI, server,
// stream protocol helpers) share a single version.
const Version = "0.3.0"
