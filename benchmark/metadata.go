// Package benchmark synthesizes population/peripheral datasets and
// measures Pipeline.Fit/Transform throughput against them.
package benchmark

import "github.com/relfeat/engine/column"

// columnMetadata describes one column of a synthetic table: its name,
// storage Kind, and the Role it is published under.
type columnMetadata struct {
	name string
	kind column.Kind
	role column.Role
}

// tableMetadata names one synthetic table's columns, repointed from
// the original TPC-H part/supplier/lineitem schema at a
// population-plus-two-peripheral-children shape: one level of
// schema.Joins off the population table, with no deeper snowflake
// nesting in this dataset.
type tableMetadata struct {
	name    string
	columns []columnMetadata
}

var schemaMetadata = []tableMetadata{
	{
		name: "customers",
		columns: []columnMetadata{
			{name: "customer_id", kind: column.JoinKey, role: column.RoleJoinKey},
			{name: "signup_ts", kind: column.Timestamp, role: column.RoleTimeStamp},
			{name: "region", kind: column.Categorical, role: column.RoleCategorical},
			{name: "churned", kind: column.Numerical, role: column.RoleTarget},
		},
	},
	{
		name: "orders",
		columns: []columnMetadata{
			{name: "customer_id", kind: column.JoinKey, role: column.RoleJoinKey},
			{name: "order_ts", kind: column.Timestamp, role: column.RoleTimeStamp},
			{name: "amount", kind: column.Numerical, role: column.RoleNumerical},
			{name: "category", kind: column.Categorical, role: column.RoleCategorical},
		},
	},
	{
		name: "events",
		columns: []columnMetadata{
			{name: "customer_id", kind: column.JoinKey, role: column.RoleJoinKey},
			{name: "event_ts", kind: column.Timestamp, role: column.RoleTimeStamp},
			{name: "duration", kind: column.Numerical, role: column.RoleNumerical},
		},
	},
}

func metadataFor(table string) tableMetadata {
	for _, m := range schemaMetadata {
		if m.name == table {
			return m
		}
	}
	return tableMetadata{}
}
