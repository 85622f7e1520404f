// Package tools implements the DBP tools and resources served by the MCP
// router.
//
// Each handler decodes its payload into a typed input, resolves the
// components it needs through the adapter at call time, and returns a typed
// output that is converted to the result object. Input and output schemas
// are reflected from those types for listings.
package tools
