// Package netutil provides network utility functions for e2ekit.
// Its central type, PortRegistry, allocates ephemeral ports via throwaway
// kernel listeners and tracks reserved ports across the process to prevent
// duplicate allocation from the TOCTOU race between concurrent callers.
package netutil
