/*
Package stringutil holds small string helpers shared by the decoding packages
*/
package stringutil

import "strings"

// StringSliceContainsKey determines if a string is present in a slice of strings
func StringSliceContainsKey(strings []string, key string) bool {
	for _, item := range strings {
		if item == key {
			return true
		}
	}
	return false
}

// SplitTag splits a struct tag value like "name,omitempty,readonly" into its name and options
func SplitTag(tag string) (string, []string) {
	parts := strings.Split(tag, ",")
	return parts[0], parts[1:]
}
