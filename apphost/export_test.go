package apphost

// Hooks for white-box tests.
var ExpandPort = expandPort
