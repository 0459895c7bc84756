// Package filtering selects link resources by id using glob patterns.
//
// It is used to decide which registered providers are inserted into the /links
// endpoint when insertProviderLinks is enabled.
//
// # Name Filtering
//
// Patterns use glob syntax with wildcards like '*', '?' and character classes '[...]':
//
//   - "mp*" matches "mp", "mpds"
//   - "*od" matches "cod", "tcod"
//   - "[a-c]*" matches "aflow", "cmr"
//
// # Filtering Logic
//
//  1. If exclude patterns are specified and match -> exclude (precedence)
//  2. If include patterns are specified and match -> include
//  3. If include patterns are specified but no match -> exclude
//  4. If only exclude patterns are specified and no match -> include
//  5. If no patterns are specified -> include (default behavior)
//
// # Usage Example
//
//	filter, err := NewNameFilter(&config.NameFilterConfig{
//		Exclude: []string{"exmpl", "*test*"},
//	})
//	kept := filter.Apply(ctx, providers)
package filtering
