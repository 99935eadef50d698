package workunit

import "strings"

func joinCSV(items []string) string { return strings.Join(items, ",") }

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
