// Package urls holds the documentation URLs printed by castscan commands.
//
// Usage:
//
//	fmt.Printf("See: %s\n", urls.RemoteControlSettings)
package urls
