// Package query answers the gradebook's fixed reporting questions. Every
// function is read-only and pushes joins, grouping and ordering into SQL.
//
// Identifiers that match no row produce an empty slice or an absent Option,
// never an error. Rows that tie on the sort key come back in whatever order
// the store returns them.
package query
