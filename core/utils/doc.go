// Package utils provides small parsing helpers shared by the HTTP handlers
// and the command line: dates, booleans, integers and comma separated lists.
package utils
