// Package deploy implements the SQL transpilation layer (§4.15): it
// emits one "CREATE TABLE ... AS SELECT ..." statement per FastProp
// feature, across the five dialect targets spec.md §6 names (SQLite,
// PostgreSQL, MySQL, SAP HANA, generic ODBC). Deliberately stdlib
// (text/template + strings.Builder) rather than a SQL parser/query
// builder: no repo in the retrieval pack ships a portable multi-dialect
// SQL code generator, only parsers and query engines aimed at a single
// dialect, so there is no third-party idiom in-pack to follow here —
// see DESIGN.md.
package deploy

import (
	"strings"
	"text/template"

	"github.com/relfeat/engine/aggregation"
	"github.com/relfeat/engine/fastprop"
	"github.com/relfeat/engine/relerr"
)

// Dialect names one of the five SQL targets spec.md §6 lists.
type Dialect int

const (
	SQLite Dialect = iota
	PostgreSQL
	MySQL
	HANA
	ODBC
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite3"
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	case HANA:
		return "hana"
	case ODBC:
		return "odbc"
	default:
		return "unknown"
	}
}

// Edge describes, for one peripheral table a deployed schema joins
// against, the join columns and the SQL predicate for each of its
// catalog features' NamedConditions (the Go-side Passes closure has no
// SQL equivalent, so conditioned features transpile only when the
// caller supplies the matching predicate text here).
type Edge struct {
	ChildTable   string
	ChildKeyCol  string
	ConditionSQL map[string]string // NamedCondition.Label -> SQL boolean predicate
}

// aggFunc maps the subset of aggregation.Kind values with a direct,
// portable SQL aggregate equivalent. Kinds outside this set (EWMA
// decay, quantiles other than MEDIAN, trend, skew/kurtosis, the
// timestamp-of-extremum family) have no standard SQL expression and are
// skipped at generation time, each noted with a comment in the emitted
// DDL rather than silently dropped.
var aggFunc = map[aggregation.Kind]string{
	aggregation.AVG:    "AVG",
	aggregation.Sum:    "SUM",
	aggregation.Count:  "COUNT",
	aggregation.Min:    "MIN",
	aggregation.Max:    "MAX",
	aggregation.StdDev: "STDDEV",
	aggregation.Var:    "VARIANCE",
}

type dialectProfile struct {
	quoteChar     string
	stdDevName    string
	varianceName  string
	medianSupport bool
}

var profiles = map[Dialect]dialectProfile{
	SQLite:     {quoteChar: `"`, stdDevName: "STDDEV", varianceName: "VARIANCE"},
	PostgreSQL: {quoteChar: `"`, stdDevName: "STDDEV_SAMP", varianceName: "VAR_SAMP", medianSupport: true},
	MySQL:      {quoteChar: "`", stdDevName: "STDDEV_SAMP", varianceName: "VAR_SAMP"},
	HANA:       {quoteChar: `"`, stdDevName: "STDDEV", varianceName: "VAR"},
	ODBC:       {quoteChar: `"`, stdDevName: "STDDEV", varianceName: "VARIANCE"},
}

func (p dialectProfile) quote(name string) string {
	return p.quoteChar + name + p.quoteChar
}

func (p dialectProfile) aggName(k aggregation.Kind) (string, bool) {
	switch k {
	case aggregation.StdDev:
		return p.stdDevName, true
	case aggregation.Var:
		return p.varianceName, true
	case aggregation.Median:
		if p.medianSupport {
			return "PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY {{.Column}})", true
		}
		return "", false
	default:
		name, ok := aggFunc[k]
		return name, ok
	}
}

const featureTemplate = `CREATE TABLE {{.Quote .FeatureTable}} AS
SELECT t1.{{.Quote .PopKeyCol}} AS {{.Quote .PopKeyCol}},
       {{.Expr}} AS {{.Quote .FeatureName}}
FROM {{.Quote .PopulationTable}} AS t1
LEFT JOIN {{.Quote .ChildTable}} AS t2 ON t1.{{.Quote .PopKeyCol}} = t2.{{.Quote .ChildKeyCol}}
GROUP BY t1.{{.Quote .PopKeyCol}};
`

type templateData struct {
	quote func(string) string

	FeatureTable    string
	FeatureName     string
	PopulationTable string
	PopKeyCol       string
	ChildTable      string
	ChildKeyCol     string
	Expr            string
}

func (d templateData) Quote(s string) string { return d.quote(s) }

// GenerateDDL implements Pipeline.deploy/to_sql: one CREATE TABLE AS
// SELECT statement per feature in catalog that both (a) uses an
// aggregation kind with a portable SQL equivalent and (b) names a
// peripheral table present in edges. Every skipped feature is recorded
// as a "-- skipped: ..." comment rather than silently dropped.
func GenerateDDL(dialect Dialect, populationTable, popKeyCol string, edges map[string]Edge, catalog []fastprop.Feature) (string, error) {
	profile, ok := profiles[dialect]
	if !ok {
		return "", relerr.Validation("unknown SQL dialect %v", dialect)
	}

	tmpl, err := template.New("feature").Parse(featureTemplate)
	if err != nil {
		return "", relerr.Internal("parsing feature DDL template: %s", err)
	}

	var out strings.Builder
	for _, f := range catalog {
		edge, ok := edges[f.PeripheralTable]
		if !ok {
			out.WriteString("-- skipped " + f.Name() + ": no join metadata for table " + f.PeripheralTable + "\n")
			continue
		}

		aggName, ok := profile.aggName(f.Kind)
		if !ok {
			out.WriteString("-- skipped " + f.Name() + ": aggregation kind " + f.Kind.String() + " has no portable SQL equivalent\n")
			continue
		}

		valueCol := profile.quote(f.Column)
		predicate := ""
		if f.ConditionLabel != "" {
			sql, ok := edge.ConditionSQL[f.ConditionLabel]
			if !ok {
				out.WriteString("-- skipped " + f.Name() + ": no SQL predicate supplied for condition " + f.ConditionLabel + "\n")
				continue
			}
			predicate = sql
		}

		valueExpr := valueCol
		if predicate != "" {
			valueExpr = "CASE WHEN " + predicate + " THEN " + valueCol + " END"
		}
		expr := strings.ReplaceAll(aggName, "{{.Column}}", valueExpr)
		if !strings.Contains(aggName, "{{.Column}}") {
			expr = aggName + "(" + valueExpr + ")"
		}

		data := templateData{
			quote:           profile.quote,
			FeatureTable:    "FEATURE_" + f.Name(),
			FeatureName:     f.Name(),
			PopulationTable: populationTable,
			PopKeyCol:       popKeyCol,
			ChildTable:      edge.ChildTable,
			ChildKeyCol:     edge.ChildKeyCol,
			Expr:            expr,
		}
		if err := tmpl.Execute(&out, data); err != nil {
			return "", relerr.Internal("executing feature DDL template for %s: %s", f.Name(), err)
		}
		out.WriteString("\n")
	}
	return out.String(), nil
}
